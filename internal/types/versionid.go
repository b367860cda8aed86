package types

// ResourceBodyVersionID maps a resource's data stream to the version id
// that addresses its on-disk file, under Resources/data/<noteLocalId>/
// <resourceLocalId>/<versionId>.dat.
type ResourceBodyVersionID struct {
	ResourceLocalID string
	VersionID       string
}

// ResourceAlternateBodyVersionID is the analogous mapping for a resource's
// alternateData stream, under Resources/alternateData/....
type ResourceAlternateBodyVersionID struct {
	ResourceLocalID string
	VersionID       string
}

func (v *ResourceBodyVersionID) Validate() error {
	if err := requireNonEmpty(FieldResourceID, v.ResourceLocalID); err != nil {
		return err
	}
	return requireNonEmpty(FieldVersionID, v.VersionID)
}

func (v *ResourceAlternateBodyVersionID) Validate() error {
	if err := requireNonEmpty(FieldResourceID, v.ResourceLocalID); err != nil {
		return err
	}
	return requireNonEmpty(FieldVersionID, v.VersionID)
}
