package types

import "time"

// Note belongs to exactly one Notebook and carries zero or more Resources.
// Content is ENML; ContentHash/ContentLength are derived from it the way
// the server computes them, so a local put can detect no-op writes.
type Note struct {
	LocalID string
	Guid    string

	NotebookLocalID string
	NotebookGuid    string

	Title         string
	Content       string
	ContentHash   []byte
	ContentLength int64

	TagLocalIDs []string
	TagGuids    []string

	Resources []*Resource
	Thumbnail []byte

	UpdateSequenceNumber int32
	LocallyModified      bool
	LocalOnly            bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (n *Note) Validate() error {
	if err := requireNonEmpty(FieldLocalID, n.LocalID); err != nil {
		return err
	}
	return requireNonEmpty(FieldNotebookID, n.NotebookLocalID)
}
