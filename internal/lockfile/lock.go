// Package lockfile provides cross-platform advisory file locking primitives
// used to coordinate access to a single account's storage root across
// processes (see internal/storage/sqlite.AccessLock).
package lockfile

import "errors"

// ErrLockBusy is returned when a non-blocking lock cannot be acquired
// because another process holds a conflicting lock.
var ErrLockBusy = errors.New("lock busy: held by another process")

// IsBusy reports whether err indicates the lock is currently held elsewhere.
func IsBusy(err error) bool {
	return errors.Is(err, ErrLockBusy)
}
