package handlers

import (
	"context"
	"database/sql"

	"github.com/quentier/localstorage/internal/events"
	"github.com/quentier/localstorage/internal/storage"
	"github.com/quentier/localstorage/internal/storeerrors"
	"github.com/quentier/localstorage/internal/types"
)

// UserHandler implements the user entity operations of spec.md §4.4. A
// User has no localId; its identity is the account's numeric userId, and
// its unbounded list fields live in side tables rather than inline columns.
type UserHandler struct {
	base
}

func NewUserHandler(writer *storage.Writer, readPool *storage.ReadPool, notifier *events.Notifier, storageRoot string) *UserHandler {
	return &UserHandler{base: newBase(writer, readPool, notifier, storageRoot)}
}

func (h *UserHandler) Put(ctx context.Context, u *types.User) *storage.Future[struct{}] {
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		if err := u.Validate(); err != nil {
			return struct{}{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO Users(userId, username, email) VALUES (?, ?, ?)
			ON CONFLICT(userId) DO UPDATE SET username = excluded.username, email = excluded.email`,
			u.UserID, u.Username, u.Email,
		); err != nil {
			return struct{}{}, storeerrors.WrapDB("put user", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM UserRecentMailedAddresses WHERE userId = ?", u.UserID); err != nil {
			return struct{}{}, storeerrors.WrapDB("clear recent mailed addresses", err)
		}
		for _, addr := range u.RecentMailedAddresses {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO UserRecentMailedAddresses(userId, address) VALUES (?, ?)", u.UserID, addr); err != nil {
				return struct{}{}, storeerrors.WrapDB("insert recent mailed address", err)
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM UserViewedPromotions WHERE userId = ?", u.UserID); err != nil {
			return struct{}{}, storeerrors.WrapDB("clear viewed promotions", err)
		}
		for _, promo := range u.ViewedPromotions {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO UserViewedPromotions(userId, promotion) VALUES (?, ?)", u.UserID, promo); err != nil {
				return struct{}{}, storeerrors.WrapDB("insert viewed promotion", err)
			}
		}
		return struct{}{}, nil
	})
	return notifyAfter(f, func(struct{}) { h.publish(events.User, events.Put, u, "") })
}

func (h *UserHandler) PutMetadata(ctx context.Context, u *types.User) *storage.Future[struct{}] {
	return h.Put(ctx, u)
}

// Find returns the user with the given userId, or (nil, nil) if absent.
func (h *UserHandler) Find(ctx context.Context, userID int64) *storage.Future[*types.User] {
	return read(&h.base, ctx, func(ctx context.Context, db *sql.DB) (*types.User, error) {
		var u types.User
		var username, email sql.NullString
		err := db.QueryRowContext(ctx, "SELECT userId, username, email FROM Users WHERE userId = ?", userID).
			Scan(&u.UserID, &username, &email)
		switch {
		case err == sql.ErrNoRows:
			return nil, nil
		case err != nil:
			return nil, storeerrors.WrapDB("find user", err)
		}
		u.Username = username.String
		u.Email = email.String

		u.RecentMailedAddresses, err = queryStrings(ctx, db,
			"SELECT address FROM UserRecentMailedAddresses WHERE userId = ?", userID)
		if err != nil {
			return nil, err
		}
		u.ViewedPromotions, err = queryStrings(ctx, db,
			"SELECT promotion FROM UserViewedPromotions WHERE userId = ?", userID)
		if err != nil {
			return nil, err
		}
		return &u, nil
	})
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeerrors.WrapDB("query string list", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, storeerrors.WrapDB("scan string list row", err)
		}
		out = append(out, s)
	}
	return out, storeerrors.WrapDB("iterate string list", rows.Err())
}

// Expunge removes the user and its side-table rows (cascaded by the
// schema's ON DELETE CASCADE).
func (h *UserHandler) Expunge(ctx context.Context, userID int64) *storage.Future[struct{}] {
	f := write(&h.base, ctx, func(ctx context.Context, tx *sql.Tx) (struct{}, error) {
		_, err := tx.ExecContext(ctx, "DELETE FROM Users WHERE userId = ?", userID)
		return struct{}{}, storeerrors.WrapDB("expunge user", err)
	})
	return notifyAfter(f, func(struct{}) { h.publish(events.User, events.Expunged, nil, "") })
}
