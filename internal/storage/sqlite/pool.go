package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/quentier/localstorage/internal/idgen"
	"github.com/quentier/localstorage/internal/storage"
	"github.com/quentier/localstorage/internal/storage/doltutil"
	"github.com/quentier/localstorage/internal/storeerrors"
)

// OwnerID identifies the long-lived goroutine a pooled connection belongs
// to. Go has no thread-local storage or thread-finished event the way the
// original's QThread-keyed pool did; callers that act like a dedicated
// worker (the writer loop, each read-pool slot) mint one OwnerID for their
// lifetime via NewOwnerID and call Release when they exit.
type OwnerID string

// NewOwnerID mints a fresh owner token.
func NewOwnerID() (OwnerID, error) {
	id, err := idgen.NewLocalID()
	if err != nil {
		return "", err
	}
	return OwnerID(id), nil
}

// Config is the Connection Pool's constructor contract (spec §4.1): host,
// user, password, database path, driver name, and connection options.
// Host/User/Password are only meaningful for the mysql/dolt server-mode
// drivers; a sqlite pool only needs DatabasePath.
type Config struct {
	Host             string
	User             string
	Password         string
	DatabasePath     string
	Driver           DriverName
	ConnectionOptions string // raw query-string fragment appended verbatim for non-sqlite drivers
	ReadOnly         bool
}

// Pool hands out one open connection per OwnerID, opening it on first use
// and guaranteeing distinct owners never share a connection (P1). Grounded
// on the double-checked-locking shape of ConnectionPool::database() in the
// original implementation, keyed here on OwnerID instead of the calling
// thread.
type Pool struct {
	cfg      Config
	pageSize int

	mu          sync.RWMutex
	connections map[OwnerID]*sql.DB
}

// NewPool validates that cfg's driver is available and returns a Pool.
// Fails with StorageOpen, enumerating available drivers, if the requested
// driver is unavailable — no connection is opened yet.
func NewPool(cfg Config) (*Pool, error) {
	if !isSupportedDriver(cfg.Driver) {
		return nil, storeerrors.New(storeerrors.StorageOpen, "unsupported driver "+string(cfg.Driver), driverListForError())
	}
	if cfg.DatabasePath == "" && cfg.Host == "" {
		return nil, storeerrors.New(storeerrors.InvalidArgument, "database path or host must be set", "")
	}
	return &Pool{
		cfg:         cfg,
		pageSize:    os.Getpagesize(),
		connections: make(map[OwnerID]*sql.DB),
	}, nil
}

// Database returns an open connection bound to owner, opening it on first
// call. Subsequent calls with the same owner return the same *sql.DB.
func (p *Pool) Database(ctx context.Context, owner OwnerID) (*sql.DB, error) {
	p.mu.RLock()
	if db, ok := p.connections[owner]; ok {
		p.mu.RUnlock()
		return db, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Re-check under the write lock: another goroutine may have opened it
	// between the RUnlock above and acquiring Lock here.
	if db, ok := p.connections[owner]; ok {
		return db, nil
	}

	db, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	p.connections[owner] = db
	return db, nil
}

func (p *Pool) open(ctx context.Context) (*sql.DB, error) {
	dsn := p.dsn()
	db, err := OpenConnection(p.cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}
	// Exactly one physical connection per pool entry: database/sql's own
	// pooling would otherwise hand back a second connection that hasn't
	// seen these PRAGMAs.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storeerrors.Wrap(storeerrors.StorageOpen, "open database connection", err)
	}

	if p.cfg.Driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, storeerrors.Wrap(storeerrors.StorageOpen, "enable foreign keys", err)
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA page_size = %d", p.pageSize)); err != nil {
			_ = db.Close()
			return nil, storeerrors.Wrap(storeerrors.StorageOpen, "set page size", err)
		}
	}
	return db, nil
}

func (p *Pool) dsn() string {
	switch p.cfg.Driver {
	case DriverSQLite:
		return storage.SQLiteConnString(p.cfg.DatabasePath, p.cfg.ReadOnly)
	default:
		dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s", p.cfg.User, p.cfg.Password, p.cfg.Host, p.cfg.DatabasePath)
		if p.cfg.ConnectionOptions != "" {
			dsn += "?" + p.cfg.ConnectionOptions
		}
		return dsn
	}
}

// Release closes and forgets owner's connection, if any. Callers that mint
// an OwnerID for a long-lived goroutine should call Release when that
// goroutine exits, standing in for the original's thread-finished signal.
func (p *Pool) Release(owner OwnerID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	db, ok := p.connections[owner]
	if !ok {
		return nil
	}
	delete(p.connections, owner)
	if err := doltutil.CloseWithTimeout(string(owner), db.Close); err != nil {
		return storeerrors.Wrap(storeerrors.StorageOperation, "close connection", err)
	}
	return nil
}

// Close closes every remaining connection in the pool. Each close is
// bounded so one connection wedged mid-shutdown (e.g. a driver stuck
// flushing a WAL file on a dying filesystem) can't hang the whole pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for owner, db := range p.connections {
		if err := doltutil.CloseWithTimeout(string(owner), db.Close); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.connections, owner)
	}
	if firstErr != nil {
		return storeerrors.Wrap(storeerrors.StorageOperation, "close pool", firstErr)
	}
	return nil
}

// Len reports how many distinct owners currently hold an open connection.
// Exists mainly for tests asserting P1 (connection exclusivity).
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.connections)
}
