package sqlite

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/quentier/localstorage/internal/storeerrors"
)

// dbSidecarSuffixes lists the extra files SQLite keeps next to the main
// database file in WAL mode; a backup is incomplete without them.
var dbSidecarSuffixes = []string{"", "-wal", "-shm", "-journal"}

// BackupDatabaseFiles copies dbPath and its WAL/SHM/journal sidecars (those
// that exist) into a fresh timestamped directory under backupRoot, and
// returns the directory it created. File permissions are preserved.
func BackupDatabaseFiles(dbPath, backupRoot string) (string, error) {
	dir := filepath.Join(backupRoot, "backup-"+time.Now().Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", storeerrors.Wrap(storeerrors.StorageOperation, "create backup directory "+dir, err)
	}

	for _, suffix := range dbSidecarSuffixes {
		src := dbPath + suffix
		info, err := os.Stat(src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", storeerrors.Wrap(storeerrors.StorageOperation, "stat "+src, err)
		}
		dst := filepath.Join(dir, filepath.Base(src))
		if err := copyFilePreservingMode(src, dst, info.Mode()); err != nil {
			return "", storeerrors.Wrap(storeerrors.StorageOperation, "copy "+src+" to "+dst, err)
		}
	}
	return dir, nil
}

// RestoreDatabaseFiles copies every file previously written by
// BackupDatabaseFiles back over dbPath and its sidecars, overwriting
// whatever the failed migration left behind.
func RestoreDatabaseFiles(backupDir, dbPath string) error {
	for _, suffix := range dbSidecarSuffixes {
		src := filepath.Join(backupDir, filepath.Base(dbPath)+suffix)
		info, err := os.Stat(src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return storeerrors.Wrap(storeerrors.StorageOperation, "stat "+src, err)
		}
		dst := dbPath + suffix
		if err := copyFilePreservingMode(src, dst, info.Mode()); err != nil {
			return storeerrors.Wrap(storeerrors.StorageOperation, "restore "+dst, err)
		}
	}
	return nil
}

// RemoveBackup deletes a backup directory created by BackupDatabaseFiles.
func RemoveBackup(backupDir string) error {
	if err := os.RemoveAll(backupDir); err != nil {
		return storeerrors.Wrap(storeerrors.StorageOperation, "remove backup "+backupDir, err)
	}
	return nil
}

func copyFilePreservingMode(src, dst string, mode os.FileMode) error {
	// #nosec G304 - src/dst are derived from the caller-controlled storage root
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	dest, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dest.Close()

	if _, err := io.Copy(dest, source); err != nil {
		return err
	}
	return dest.Sync()
}
