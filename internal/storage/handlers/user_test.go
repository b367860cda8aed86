package handlers

import (
	"context"
	"reflect"
	"sort"
	"testing"

	"github.com/quentier/localstorage/internal/types"
)

func TestUserHandlerPutAndFind(t *testing.T) {
	env := newTestEnv(t)
	h := &UserHandler{base: env.newBase(t)}
	ctx := context.Background()

	u := &types.User{
		UserID:                42,
		Username:              "alice",
		Email:                 "alice@example.com",
		RecentMailedAddresses: []string{"bob@example.com", "carol@example.com"},
		ViewedPromotions:      []string{"promo1"},
	}
	if _, err := h.Put(ctx, u).Wait(); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	found, err := h.Find(ctx, 42).Wait()
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if found == nil || found.Username != "alice" || found.Email != "alice@example.com" {
		t.Fatalf("Find() = %+v, want username=alice email=alice@example.com", found)
	}

	sort.Strings(found.RecentMailedAddresses)
	want := []string{"bob@example.com", "carol@example.com"}
	if !reflect.DeepEqual(found.RecentMailedAddresses, want) {
		t.Fatalf("RecentMailedAddresses = %v, want %v", found.RecentMailedAddresses, want)
	}
	if !reflect.DeepEqual(found.ViewedPromotions, []string{"promo1"}) {
		t.Fatalf("ViewedPromotions = %v, want [promo1]", found.ViewedPromotions)
	}
}

func TestUserHandlerPutReplacesSideTables(t *testing.T) {
	env := newTestEnv(t)
	h := &UserHandler{base: env.newBase(t)}
	ctx := context.Background()

	u := &types.User{UserID: 1, Username: "alice", RecentMailedAddresses: []string{"a@example.com"}}
	if _, err := h.Put(ctx, u).Wait(); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}

	u2 := &types.User{UserID: 1, Username: "alice", RecentMailedAddresses: []string{"b@example.com"}}
	if _, err := h.Put(ctx, u2).Wait(); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	found, err := h.Find(ctx, 1).Wait()
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if !reflect.DeepEqual(found.RecentMailedAddresses, []string{"b@example.com"}) {
		t.Fatalf("RecentMailedAddresses = %v, want [b@example.com]", found.RecentMailedAddresses)
	}
}

func TestUserHandlerFindMissingReturnsNilNoError(t *testing.T) {
	env := newTestEnv(t)
	h := &UserHandler{base: env.newBase(t)}
	ctx := context.Background()

	found, err := h.Find(ctx, 999).Wait()
	if err != nil {
		t.Fatalf("Find() error = %v, want nil", err)
	}
	if found != nil {
		t.Fatalf("Find() = %+v, want nil", found)
	}
}

func TestUserHandlerExpungeCascadesSideTables(t *testing.T) {
	env := newTestEnv(t)
	h := &UserHandler{base: env.newBase(t)}
	ctx := context.Background()

	u := &types.User{UserID: 1, Username: "alice", RecentMailedAddresses: []string{"a@example.com"}}
	if _, err := h.Put(ctx, u).Wait(); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := h.Expunge(ctx, 1).Wait(); err != nil {
		t.Fatalf("Expunge() error = %v", err)
	}

	found, err := h.Find(ctx, 1).Wait()
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if found != nil {
		t.Fatalf("Find() after expunge = %+v, want nil", found)
	}
}
