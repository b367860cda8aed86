package types

// User holds the account owner's profile and attributes. ViewedPromotions
// and RecentMailedAddresses are stored in side tables rather than inline
// columns since they're unbounded lists.
type User struct {
	UserID int64

	Username string
	Email    string

	ViewedPromotions       []string
	RecentMailedAddresses  []string
}

func (u *User) Validate() error {
	if u.UserID == 0 {
		return requireNonEmpty(FieldUserID, "")
	}
	return nil
}
