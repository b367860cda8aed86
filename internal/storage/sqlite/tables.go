package sqlite

import (
	"context"
	"database/sql"

	"github.com/quentier/localstorage/internal/storeerrors"
)

// schemaStatements creates every table, index and trigger the engine needs,
// in dependency order (referenced tables before their foreign keys). Every
// statement is idempotent (IF NOT EXISTS) so InitializeTables can run both
// against a brand-new database and, between patch steps, against one that
// already has some tables.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS Auxiliary (
		version INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS Users (
		userId INTEGER PRIMARY KEY,
		username TEXT,
		email TEXT,
		timezone TEXT,
		privilege INTEGER,
		created INTEGER,
		updated INTEGER,
		deleted INTEGER,
		active INTEGER
	)`,

	`CREATE TABLE IF NOT EXISTS UserRecentMailedAddresses (
		userId INTEGER NOT NULL REFERENCES Users(userId) ON DELETE CASCADE,
		address TEXT NOT NULL,
		PRIMARY KEY (userId, address)
	)`,

	`CREATE TABLE IF NOT EXISTS UserViewedPromotions (
		userId INTEGER NOT NULL REFERENCES Users(userId) ON DELETE CASCADE,
		promotion TEXT NOT NULL,
		PRIMARY KEY (userId, promotion)
	)`,

	`CREATE TABLE IF NOT EXISTS LinkedNotebooks (
		guid TEXT PRIMARY KEY,
		shardId TEXT,
		username TEXT,
		shareKey TEXT,
		updateSequenceNumber INTEGER
	)`,

	`CREATE TABLE IF NOT EXISTS Notebooks (
		localId TEXT PRIMARY KEY,
		guid TEXT UNIQUE,
		name TEXT NOT NULL,
		nameLower TEXT NOT NULL,
		linkedNotebookGuid TEXT REFERENCES LinkedNotebooks(guid) ON DELETE CASCADE,
		updateSequenceNumber INTEGER,
		isDefault INTEGER NOT NULL DEFAULT 0,
		isLastUsed INTEGER NOT NULL DEFAULT 0,
		stack TEXT,
		locallyModified INTEGER NOT NULL DEFAULT 0,
		localOnly INTEGER NOT NULL DEFAULT 0,
		createdAt INTEGER,
		updatedAt INTEGER
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS NotebookNameUniqueInScope
		ON Notebooks(nameLower, COALESCE(linkedNotebookGuid, ''))`,

	`CREATE TABLE IF NOT EXISTS Tags (
		localId TEXT PRIMARY KEY,
		guid TEXT UNIQUE,
		name TEXT NOT NULL,
		nameLower TEXT NOT NULL,
		parentTagLocalId TEXT REFERENCES Tags(localId) ON DELETE SET NULL,
		parentGuid TEXT,
		linkedNotebookGuid TEXT REFERENCES LinkedNotebooks(guid) ON DELETE CASCADE,
		updateSequenceNumber INTEGER,
		locallyModified INTEGER NOT NULL DEFAULT 0,
		localOnly INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS TagNameUniqueInScope
		ON Tags(nameLower, COALESCE(linkedNotebookGuid, ''))`,

	`CREATE TABLE IF NOT EXISTS SavedSearches (
		localId TEXT PRIMARY KEY,
		guid TEXT UNIQUE,
		name TEXT NOT NULL,
		nameLower TEXT NOT NULL UNIQUE,
		query TEXT NOT NULL,
		updateSequenceNumber INTEGER,
		locallyModified INTEGER NOT NULL DEFAULT 0,
		localOnly INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS Notes (
		localId TEXT PRIMARY KEY,
		guid TEXT UNIQUE,
		notebookLocalId TEXT NOT NULL REFERENCES Notebooks(localId) ON DELETE CASCADE,
		notebookGuid TEXT,
		title TEXT,
		content TEXT,
		contentHash BLOB,
		contentLength INTEGER,
		updateSequenceNumber INTEGER,
		thumbnail BLOB,
		locallyModified INTEGER NOT NULL DEFAULT 0,
		localOnly INTEGER NOT NULL DEFAULT 0,
		createdAt INTEGER,
		updatedAt INTEGER
	)`,

	`CREATE INDEX IF NOT EXISTS NotesByNotebook ON Notes(notebookLocalId)`,

	`CREATE TABLE IF NOT EXISTS NoteTags (
		noteLocalId TEXT NOT NULL REFERENCES Notes(localId) ON DELETE CASCADE,
		tagLocalId TEXT NOT NULL REFERENCES Tags(localId) ON DELETE CASCADE,
		tagGuid TEXT,
		position INTEGER NOT NULL,
		PRIMARY KEY (noteLocalId, tagLocalId)
	)`,

	`CREATE TABLE IF NOT EXISTS Resources (
		localId TEXT PRIMARY KEY,
		guid TEXT UNIQUE,
		noteLocalId TEXT NOT NULL REFERENCES Notes(localId) ON DELETE CASCADE,
		noteGuid TEXT,
		mime TEXT,
		width INTEGER,
		height INTEGER,
		dataSize INTEGER,
		dataHash BLOB,
		alternateDataSize INTEGER,
		alternateDataHash BLOB,
		recognitionBody TEXT,
		attributes TEXT,
		updateSequenceNumber INTEGER,
		position INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE INDEX IF NOT EXISTS ResourcesByNote ON Resources(noteLocalId)`,

	`CREATE TABLE IF NOT EXISTS ResourceDataBodyVersionIds (
		resourceLocalId TEXT PRIMARY KEY REFERENCES Resources(localId) ON DELETE CASCADE,
		versionId TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS ResourceAlternateDataBodyVersionIds (
		resourceLocalId TEXT PRIMARY KEY REFERENCES Resources(localId) ON DELETE CASCADE,
		versionId TEXT NOT NULL
	)`,
}

// InitializeTables creates every table, unique index and foreign key
// relationship the engine needs if it does not already exist. Safe to call
// against a fresh database or an already-initialized one; patches call it
// again after introducing new tables (the v2→v3 version-id tables) instead
// of hand-rolling their own CREATE TABLE statements.
func InitializeTables(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeerrors.Wrap(storeerrors.StorageOpen, "begin schema transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return storeerrors.Wrap(storeerrors.StorageOpen, "apply schema statement", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeerrors.Wrap(storeerrors.StorageOpen, "commit schema transaction", err)
	}
	return nil
}
