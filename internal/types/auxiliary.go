package types

// AuxiliaryRow is the single-row table holding the schema version. Absence
// of the row is treated as version 1 by the version handler.
type AuxiliaryRow struct {
	Version int
}
