package types

// ResourceBody describes one attachment stream (data, alternateData, or
// recognition). Size and Hash are computed over Body. Data and
// alternateData bodies are written to content-addressed files named by
// their version-id rows and are never stored in SQLite; a recognition body
// is stored inline in the Resources row's recognitionBody column.
type ResourceBody struct {
	Body []byte
	Hash []byte // SHA-256 of Body
	Size int64
}

// Resource is an attachment belonging to exactly one Note. Its data and
// alternateData bodies live outside SQLite, addressed by the version ids
// recorded in ResourceBodyVersionId / ResourceAlternateBodyVersionId rows.
type Resource struct {
	LocalID string
	Guid    string

	NoteLocalID string
	NoteGuid    string

	Mime   string
	Width  int32
	Height int32

	Data          *ResourceBody
	AlternateData *ResourceBody
	Recognition   *ResourceBody

	Attributes map[string]string

	UpdateSequenceNumber int32
	LocallyModified      bool
	LocalOnly            bool
}

func (r *Resource) Validate() error {
	if err := requireNonEmpty(FieldLocalID, r.LocalID); err != nil {
		return err
	}
	return requireNonEmpty(FieldNoteID, r.NoteLocalID)
}
