package types

// Tag labels Notes. Name is case-insensitively unique within its scope.
// ParentGuid is non-empty exactly when the parent tag has a guid (an
// invariant enforced by the resolver, not by this type).
type Tag struct {
	LocalID string
	Guid    string
	Name    string

	ParentTagLocalID string
	ParentGuid       string

	LinkedNotebookGuid string

	UpdateSequenceNumber int32
	LocallyModified      bool
	LocalOnly            bool
}

func (t *Tag) Validate() error {
	if err := requireNonEmpty(FieldLocalID, t.LocalID); err != nil {
		return err
	}
	return requireNonEmpty(FieldName, t.Name)
}

func (t *Tag) NormalizedName() string {
	return NormalizeName(t.Name)
}

func (t *Tag) Scope() string {
	return t.LinkedNotebookGuid
}
