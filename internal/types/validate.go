package types

import (
	"strings"

	"github.com/quentier/localstorage/internal/storeerrors"
)

// NormalizeName lowercases and trims a Notebook/Tag/SavedSearch name for
// uniqueness comparisons. Display casing is preserved separately in the
// entity's Name field; only comparisons go through this form.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func requireNonEmpty(field Kind, value string) error {
	if strings.TrimSpace(value) == "" {
		return storeerrors.New(storeerrors.InvalidArgument, string(field)+" must not be empty", "")
	}
	return nil
}

// Kind names a required field for InvalidArgument error messages.
type Kind string

const (
	FieldLocalID      Kind = "localId"
	FieldName         Kind = "name"
	FieldNotebookID   Kind = "notebookLocalId"
	FieldNoteID       Kind = "noteLocalId"
	FieldQuery        Kind = "query"
	FieldGuid         Kind = "guid"
	FieldShardID      Kind = "shardId"
	FieldUsername     Kind = "username"
	FieldShareKey     Kind = "shareKey"
	FieldUserID       Kind = "userId"
	FieldResourceID   Kind = "resourceLocalId"
	FieldVersionID    Kind = "versionId"
)
