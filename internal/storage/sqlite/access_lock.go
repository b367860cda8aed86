package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/quentier/localstorage/internal/lockfile"
	"github.com/quentier/localstorage/internal/storeerrors"
)

// AccessLock is an advisory lock file guarding the storage root's
// Resources/ directory tree, taken either shared or exclusive. The Writer,
// the ReadPool and ResourceBodyStore do not acquire it themselves; it
// coordinates only callers that take it explicitly via AcquireAccessLock.
type AccessLock struct {
	file *os.File
}

const (
	accessLockFile   = "resources-access.lock"
	lockPollInterval = 50 * time.Millisecond
)

var accessLockMetrics struct {
	lockWaitMs metric.Float64Histogram
}

func init() {
	m := otel.Meter("github.com/quentier/localstorage/storage/sqlite")
	accessLockMetrics.lockWaitMs, _ = m.Float64Histogram("localstorage.access_lock.wait_ms",
		metric.WithDescription("time spent waiting to acquire the Resources/ access lock"),
		metric.WithUnit("ms"),
	)
}

// AcquireAccessLock acquires an advisory flock on <storageRoot>/
// resources-access.lock. exclusive=true acquires an exclusive lock (for the
// writer's rename-and-commit step); otherwise a shared lock (for readers).
// Polls with lockPollInterval until timeout expires, returning a
// storeerrors.StorageOperation-wrapped lockfile.ErrLockBusy on timeout, or a
// storeerrors.Canceled error if ctx is canceled while waiting.
func AcquireAccessLock(ctx context.Context, storageRoot string, exclusive bool, timeout time.Duration) (*AccessLock, error) {
	if err := os.MkdirAll(storageRoot, 0o750); err != nil {
		return nil, storeerrors.Wrap(storeerrors.StorageOpen, "create storage root "+storageRoot, err)
	}

	lockPath := filepath.Join(storageRoot, accessLockFile)
	// #nosec G304 - lockPath is derived from the caller-controlled storage root
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, storeerrors.Wrap(storeerrors.StorageOpen, "open access lock "+lockPath, err)
	}

	lockFn := lockfile.FlockSharedNonBlock
	if exclusive {
		lockFn = lockfile.FlockExclusiveNonBlock
	}

	attrs := metric.WithAttributes(attribute.Bool("localstorage.lock.exclusive", exclusive))
	start := time.Now()

	if err := lockFn(f); err == nil {
		accessLockMetrics.lockWaitMs.Record(ctx, 0, attrs)
		return &AccessLock{file: f}, nil
	} else if !errors.Is(err, lockfile.ErrLockBusy) {
		_ = f.Close()
		return nil, storeerrors.Wrap(storeerrors.StorageOpen, "access lock "+lockPath, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, storeerrors.Wrap(storeerrors.Canceled, "access lock "+lockPath, ctx.Err())
		case <-time.After(lockPollInterval):
		}

		if err := lockFn(f); err == nil {
			accessLockMetrics.lockWaitMs.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
			return &AccessLock{file: f}, nil
		} else if !errors.Is(err, lockfile.ErrLockBusy) {
			_ = f.Close()
			return nil, storeerrors.Wrap(storeerrors.StorageOpen, "access lock "+lockPath, err)
		}
	}

	_ = f.Close()
	return nil, storeerrors.Wrap(storeerrors.StorageOperation, "access lock "+lockPath+" timed out", lockfile.ErrLockBusy)
}

// Release releases the advisory lock and closes the underlying file.
// Safe to call multiple times and on a nil receiver.
func (l *AccessLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = lockfile.FlockUnlock(l.file)
	_ = l.file.Close()
	l.file = nil
}
