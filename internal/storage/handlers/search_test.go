package handlers

import (
	"context"
	"testing"

	"github.com/quentier/localstorage/internal/types"
)

func TestSavedSearchHandlerPutAndFind(t *testing.T) {
	env := newTestEnv(t)
	h := &SavedSearchHandler{base: env.newBase(t)}
	ctx := context.Background()

	s := &types.SavedSearch{LocalID: "s1", Name: "unread", Query: "notebook:Inbox"}
	if _, err := h.Put(ctx, s).Wait(); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	found, err := h.FindByLocalID(ctx, "s1").Wait()
	if err != nil {
		t.Fatalf("FindByLocalID() error = %v", err)
	}
	if found == nil || found.Query != "notebook:Inbox" {
		t.Fatalf("FindByLocalID() = %+v, want Query=notebook:Inbox", found)
	}
}

func TestSavedSearchHandlerPutRequiresQuery(t *testing.T) {
	env := newTestEnv(t)
	h := &SavedSearchHandler{base: env.newBase(t)}
	ctx := context.Background()

	_, err := h.Put(ctx, &types.SavedSearch{LocalID: "s1", Name: "unread"}).Wait()
	if err == nil {
		t.Fatal("Put() error = nil, want error for missing query")
	}
}

func TestSavedSearchHandlerExpungeByLocalID(t *testing.T) {
	env := newTestEnv(t)
	h := &SavedSearchHandler{base: env.newBase(t)}
	ctx := context.Background()

	s := &types.SavedSearch{LocalID: "s1", Name: "unread", Query: "notebook:Inbox"}
	if _, err := h.Put(ctx, s).Wait(); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := h.ExpungeByLocalID(ctx, "s1").Wait(); err != nil {
		t.Fatalf("ExpungeByLocalID() error = %v", err)
	}

	found, err := h.FindByLocalID(ctx, "s1").Wait()
	if err != nil {
		t.Fatalf("FindByLocalID() error = %v", err)
	}
	if found != nil {
		t.Fatalf("FindByLocalID() after expunge = %+v, want nil", found)
	}
}
