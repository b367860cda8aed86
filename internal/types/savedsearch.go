package types

// SavedSearch stores a named query string. Name is case-insensitively
// unique account-wide; saved searches never belong to a linked notebook.
type SavedSearch struct {
	LocalID string
	Guid    string
	Name    string
	Query   string

	UpdateSequenceNumber int32
	LocallyModified      bool
	LocalOnly            bool
}

func (s *SavedSearch) Validate() error {
	if err := requireNonEmpty(FieldLocalID, s.LocalID); err != nil {
		return err
	}
	if err := requireNonEmpty(FieldName, s.Name); err != nil {
		return err
	}
	return requireNonEmpty(FieldQuery, s.Query)
}

func (s *SavedSearch) NormalizedName() string {
	return NormalizeName(s.Name)
}
