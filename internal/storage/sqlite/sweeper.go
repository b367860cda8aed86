package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quentier/localstorage/internal/debug"
	"github.com/quentier/localstorage/internal/storeerrors"
)

// Sweeper periodically reconciles the Resources/ file tree against the
// version-id tables, deleting orphan files: a crash between committing a
// new version id and deleting the old file's sibling leaves a stale file
// behind (spec.md §4.3); a crash before the commit leaves an orphan new
// file. Neither corrupts the current-version invariant, but both leak
// disk space if nothing ever cleans them up.
type Sweeper struct {
	db          *sql.DB
	storageRoot string
	interval    time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSweeper constructs a Sweeper that scans every interval and, in
// addition, scans when fsnotify reports a Create or Rename directly under
// Resources/data or Resources/alternateData (the watch is not recursive).
func NewSweeper(db *sql.DB, storageRoot string, interval time.Duration) (*Sweeper, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, storeerrors.Wrap(storeerrors.StorageOpen, "create resource sweep watcher", err)
	}

	s := &Sweeper{
		db:          db,
		storageRoot: storageRoot,
		interval:    interval,
		watcher:     watcher,
		done:        make(chan struct{}),
	}
	return s, nil
}

// Run scans immediately, then on every tick and every Create or Rename
// event the watcher reports, until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	for _, dir := range []string{"data", "alternateData"} {
		root := filepath.Join(s.storageRoot, "Resources", dir)
		if err := os.MkdirAll(root, 0o750); err == nil {
			_ = s.watcher.Add(root)
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.done)

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
				s.sweepOnce(ctx)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			debug.Logf("resource sweeper watch error: %v", err)
		}
	}
}

// Close stops the underlying fsnotify watcher. Safe to call after Run's
// context has already been canceled.
func (s *Sweeper) Close() error {
	return s.watcher.Close()
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	for _, stream := range []BodyStream{DataBody, AlternateDataBody} {
		if err := s.sweepStream(ctx, stream); err != nil {
			debug.Logf("resource sweep of %s failed: %v", stream.directory(), err)
		}
	}
}

func (s *Sweeper) sweepStream(ctx context.Context, stream BodyStream) error {
	// orphanGracePeriod keeps a body file that ResourceBodyStore.Write has
	// just written, but whose version-id row has not committed yet, from
	// being removed as an orphan.
	const orphanGracePeriod = time.Minute

	current, err := s.currentVersionIDs(ctx, stream)
	if err != nil {
		return err
	}

	root := filepath.Join(s.storageRoot, "Resources", stream.directory())
	noteDirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return storeerrors.Wrap(storeerrors.StorageOperation, "list "+root, err)
	}

	for _, noteDir := range noteDirs {
		if !noteDir.IsDir() {
			continue
		}
		notePath := filepath.Join(root, noteDir.Name())
		resourceDirs, err := os.ReadDir(notePath)
		if err != nil {
			continue
		}
		for _, resourceDir := range resourceDirs {
			if !resourceDir.IsDir() {
				continue
			}
			resourceLocalID := resourceDir.Name()
			resourcePath := filepath.Join(notePath, resourceLocalID)

			files, err := os.ReadDir(resourcePath)
			if err != nil {
				continue
			}
			wantVersionID, hasCurrent := current[resourceLocalID]
			for _, f := range files {
				if f.IsDir() || filepath.Ext(f.Name()) != ".dat" {
					continue
				}
				versionID := f.Name()[:len(f.Name())-len(".dat")]
				if hasCurrent && versionID == wantVersionID {
					continue
				}
				if info, err := f.Info(); err != nil || time.Since(info.ModTime()) < orphanGracePeriod {
					continue
				}
				orphanPath := filepath.Join(resourcePath, f.Name())
				if err := os.Remove(orphanPath); err != nil {
					debug.Logf("resource sweep: failed to remove orphan %s: %v", orphanPath, err)
				}
			}
		}
	}
	return nil
}

func (s *Sweeper) currentVersionIDs(ctx context.Context, stream BodyStream) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT resourceLocalId, versionId FROM "+stream.versionTable())
	if err != nil {
		return nil, storeerrors.Wrap(storeerrors.StorageOperation, "list current version ids", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var resourceLocalID, versionID string
		if err := rows.Scan(&resourceLocalID, &versionID); err != nil {
			return nil, storeerrors.Wrap(storeerrors.StorageOperation, "scan version id row", err)
		}
		out[resourceLocalID] = versionID
	}
	if err := rows.Err(); err != nil {
		return nil, storeerrors.Wrap(storeerrors.StorageOperation, "iterate version ids", err)
	}
	return out, nil
}
