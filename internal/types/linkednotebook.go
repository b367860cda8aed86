package types

// LinkedNotebook is a reference to a notebook shared by another account.
// It has no separate localId; Guid is its identity.
type LinkedNotebook struct {
	Guid     string
	ShardID  string
	Username string
	ShareKey string
}

func (l *LinkedNotebook) Validate() error {
	if err := requireNonEmpty(FieldGuid, l.Guid); err != nil {
		return err
	}
	if err := requireNonEmpty(FieldShardID, l.ShardID); err != nil {
		return err
	}
	if err := requireNonEmpty(FieldUsername, l.Username); err != nil {
		return err
	}
	return requireNonEmpty(FieldShareKey, l.ShareKey)
}
