package types

import "time"

// Notebook groups Notes. Name is case-insensitively unique within its scope
// (the account, or the linked notebook identified by LinkedNotebookGuid).
type Notebook struct {
	LocalID  string
	Guid     string // empty when purely local
	Name     string
	Stack    string // empty when not stacked
	IsDefault bool
	LastUsed bool

	LinkedNotebookGuid string // empty when not a linked notebook's copy

	UpdateSequenceNumber int32 // 0 when purely local
	LocallyModified      bool
	LocalOnly            bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the required fields a caller must supply before put.
func (n *Notebook) Validate() error {
	if err := requireNonEmpty(FieldLocalID, n.LocalID); err != nil {
		return err
	}
	return requireNonEmpty(FieldName, n.Name)
}

// NormalizedName is the form used for case-insensitive uniqueness checks.
func (n *Notebook) NormalizedName() string {
	return NormalizeName(n.Name)
}

// Scope identifies the uniqueness scope this notebook's name is checked
// against: the account, or a specific linked notebook.
func (n *Notebook) Scope() string {
	return n.LinkedNotebookGuid
}
