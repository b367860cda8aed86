package handlers

import (
	"context"
	"testing"

	"github.com/quentier/localstorage/internal/storeerrors"
	"github.com/quentier/localstorage/internal/types"
)

func TestNotebookHandlerPutAndFind(t *testing.T) {
	env := newTestEnv(t)
	h := &NotebookHandler{base: env.newBase(t)}
	ctx := context.Background()

	nb := &types.Notebook{LocalID: "nb1", Name: "Personal"}
	if _, err := h.Put(ctx, nb).Wait(); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	found, err := h.FindByLocalID(ctx, "nb1").Wait()
	if err != nil {
		t.Fatalf("FindByLocalID() error = %v", err)
	}
	if found == nil || found.Name != "Personal" {
		t.Fatalf("FindByLocalID() = %+v, want Name=Personal", found)
	}
}

func TestNotebookHandlerFindMissingReturnsNilNoError(t *testing.T) {
	env := newTestEnv(t)
	h := &NotebookHandler{base: env.newBase(t)}
	ctx := context.Background()

	found, err := h.FindByLocalID(ctx, "absent").Wait()
	if err != nil {
		t.Fatalf("FindByLocalID() error = %v, want nil", err)
	}
	if found != nil {
		t.Fatalf("FindByLocalID() = %+v, want nil", found)
	}
}

func TestNotebookHandlerPutPreservesCreatedAtAcrossUpdates(t *testing.T) {
	env := newTestEnv(t)
	h := &NotebookHandler{base: env.newBase(t)}
	ctx := context.Background()

	nb := &types.Notebook{LocalID: "nb1", Name: "Personal"}
	if _, err := h.Put(ctx, nb).Wait(); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}
	first, err := h.FindByLocalID(ctx, "nb1").Wait()
	if err != nil {
		t.Fatalf("FindByLocalID() error = %v", err)
	}

	nb2 := &types.Notebook{LocalID: "nb1", Name: "Work"}
	if _, err := h.Put(ctx, nb2).Wait(); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}
	second, err := h.FindByLocalID(ctx, "nb1").Wait()
	if err != nil {
		t.Fatalf("FindByLocalID() error = %v", err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("CreatedAt changed across update: first=%v second=%v", first.CreatedAt, second.CreatedAt)
	}
	if second.Name != "Work" {
		t.Fatalf("Name = %q, want Work", second.Name)
	}
}

func TestNotebookHandlerPutValidatesRequiredFields(t *testing.T) {
	env := newTestEnv(t)
	h := &NotebookHandler{base: env.newBase(t)}
	ctx := context.Background()

	_, err := h.Put(ctx, &types.Notebook{LocalID: "nb1"}).Wait()
	if !storeerrors.IsInvalidArgument(err) {
		t.Fatalf("Put() error = %v, want InvalidArgument", err)
	}
}

func TestNotebookHandlerExpungeByLocalID(t *testing.T) {
	env := newTestEnv(t)
	h := &NotebookHandler{base: env.newBase(t)}
	ctx := context.Background()

	nb := &types.Notebook{LocalID: "nb1", Name: "Personal"}
	if _, err := h.Put(ctx, nb).Wait(); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := h.ExpungeByLocalID(ctx, "nb1").Wait(); err != nil {
		t.Fatalf("ExpungeByLocalID() error = %v", err)
	}

	found, err := h.FindByLocalID(ctx, "nb1").Wait()
	if err != nil {
		t.Fatalf("FindByLocalID() error = %v", err)
	}
	if found != nil {
		t.Fatalf("FindByLocalID() after expunge = %+v, want nil", found)
	}
}

func TestNotebookHandlerExpungeByGuid(t *testing.T) {
	env := newTestEnv(t)
	h := &NotebookHandler{base: env.newBase(t)}
	ctx := context.Background()

	nb := &types.Notebook{LocalID: "nb1", Guid: "g1", Name: "Personal"}
	if _, err := h.Put(ctx, nb).Wait(); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := h.ExpungeByGuid(ctx, "g1").Wait(); err != nil {
		t.Fatalf("ExpungeByGuid() error = %v", err)
	}

	found, err := h.FindByLocalID(ctx, "nb1").Wait()
	if err != nil {
		t.Fatalf("FindByLocalID() error = %v", err)
	}
	if found != nil {
		t.Fatalf("FindByLocalID() after expunge = %+v, want nil", found)
	}
}

func TestNotebookHandlerExpungeByGuidMissingIsNotAnError(t *testing.T) {
	env := newTestEnv(t)
	h := &NotebookHandler{base: env.newBase(t)}
	ctx := context.Background()

	if _, err := h.ExpungeByGuid(ctx, "nonexistent").Wait(); err != nil {
		t.Fatalf("ExpungeByGuid() error = %v, want nil", err)
	}
}

func TestNotebookHandlerCount(t *testing.T) {
	env := newTestEnv(t)
	h := &NotebookHandler{base: env.newBase(t)}
	ctx := context.Background()

	for _, nb := range []*types.Notebook{
		{LocalID: "nb1", Name: "One"},
		{LocalID: "nb2", Name: "Two"},
	} {
		if _, err := h.Put(ctx, nb).Wait(); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	n, err := h.Count(ctx).Wait()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("Count() = %d, want 2", n)
	}
}
