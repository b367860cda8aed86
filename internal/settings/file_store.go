package settings

import (
	"context"
	"os"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/quentier/localstorage/internal/storeerrors"
)

// FileStore is a Store backed by a single TOML file, loaded once and kept
// in memory, rewritten in full on every mutation. Good enough for the
// handful of resumability flags a patch needs to track; not meant for
// high-frequency writes.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]any
}

// OpenFileStore loads path if it exists, or starts empty if it does not.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, values: make(map[string]any)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, storeerrors.Wrap(storeerrors.StorageOpen, "open settings file "+path, err)
	}
	if _, err := toml.Decode(string(data), &fs.values); err != nil {
		return nil, storeerrors.Wrap(storeerrors.StorageOpen, "parse settings file "+path, err)
	}
	return fs, nil
}

func (fs *FileStore) persist() error {
	f, err := os.Create(fs.path)
	if err != nil {
		return storeerrors.Wrap(storeerrors.StorageOperation, "write settings file "+fs.path, err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(fs.values); err != nil {
		return storeerrors.Wrap(storeerrors.StorageOperation, "encode settings file "+fs.path, err)
	}
	return nil
}

func (fs *FileStore) GetString(_ context.Context, key string) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	v, ok := fs.values[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (fs *FileStore) SetString(_ context.Context, key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.values[key] = value
	return fs.persist()
}

func (fs *FileStore) GetBool(_ context.Context, key string) (bool, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	v, ok := fs.values[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (fs *FileStore) SetBool(_ context.Context, key string, value bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.values[key] = value
	return fs.persist()
}

func (fs *FileStore) Delete(_ context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.values[key]; !ok {
		return nil
	}
	delete(fs.values, key)
	return fs.persist()
}

var _ Store = (*FileStore)(nil)
