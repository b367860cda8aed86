package handlers

import (
	"bytes"
	"context"
	"testing"

	"github.com/quentier/localstorage/internal/types"
)

func putTestNote(t *testing.T, env *testEnv, notebookLocalID, noteLocalID string) {
	t.Helper()
	putTestNotebook(t, env, notebookLocalID)
	notes := &NoteHandler{base: env.newBase(t), resources: &ResourceHandler{base: env.newBase(t)}}
	if _, err := notes.Put(context.Background(), &types.Note{LocalID: noteLocalID, NotebookLocalID: notebookLocalID}).Wait(); err != nil {
		t.Fatalf("put note %q: %v", noteLocalID, err)
	}
}

func TestResourceHandlerPutAndFindWithBody(t *testing.T) {
	env := newTestEnv(t)
	putTestNote(t, env, "nb1", "n1")
	h := &ResourceHandler{base: env.newBase(t)}
	ctx := context.Background()

	r := &types.Resource{
		LocalID:     "r1",
		NoteLocalID: "n1",
		Mime:        "image/png",
		Data:        &types.ResourceBody{Body: []byte("hello bytes")},
	}
	if _, err := h.Put(ctx, r).Wait(); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	found, err := h.FindByLocalID(ctx, "r1", true).Wait()
	if err != nil {
		t.Fatalf("FindByLocalID() error = %v", err)
	}
	if found == nil || found.Data == nil || !bytes.Equal(found.Data.Body, []byte("hello bytes")) {
		t.Fatalf("FindByLocalID() = %+v, want Data.Body=hello bytes", found)
	}
	if found.Data.Size != int64(len("hello bytes")) {
		t.Fatalf("Data.Size = %d, want %d", found.Data.Size, len("hello bytes"))
	}
	if len(found.Data.Hash) == 0 {
		t.Fatal("Data.Hash is empty, want computed sha256")
	}
}

func TestResourceHandlerPutAndFindRoundTripsAttributes(t *testing.T) {
	env := newTestEnv(t)
	putTestNote(t, env, "nb1", "n1")
	h := &ResourceHandler{base: env.newBase(t)}
	ctx := context.Background()

	r := &types.Resource{
		LocalID:     "r1",
		NoteLocalID: "n1",
		Mime:        "image/png",
		Attributes:  map[string]string{"sourceURL": "http://example.com", "fileName": "photo.png"},
	}
	if _, err := h.Put(ctx, r).Wait(); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	found, err := h.FindByLocalID(ctx, "r1", false).Wait()
	if err != nil {
		t.Fatalf("FindByLocalID() error = %v", err)
	}
	want := map[string]string{"sourceURL": "http://example.com", "fileName": "photo.png"}
	if len(found.Attributes) != len(want) {
		t.Fatalf("Attributes = %+v, want %+v", found.Attributes, want)
	}
	for k, v := range want {
		if found.Attributes[k] != v {
			t.Fatalf("Attributes[%q] = %q, want %q", k, found.Attributes[k], v)
		}
	}
}

func TestResourceHandlerFindWithoutBodiesOmitsBytes(t *testing.T) {
	env := newTestEnv(t)
	putTestNote(t, env, "nb1", "n1")
	h := &ResourceHandler{base: env.newBase(t)}
	ctx := context.Background()

	r := &types.Resource{LocalID: "r1", NoteLocalID: "n1", Data: &types.ResourceBody{Body: []byte("bytes")}}
	if _, err := h.Put(ctx, r).Wait(); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	found, err := h.FindByLocalID(ctx, "r1", false).Wait()
	if err != nil {
		t.Fatalf("FindByLocalID() error = %v", err)
	}
	if found.Data.Body != nil {
		t.Fatalf("Data.Body = %v, want nil (bodies not requested)", found.Data.Body)
	}
	if found.Data.Size != int64(len("bytes")) {
		t.Fatalf("Data.Size = %d, want %d (metadata still loaded)", found.Data.Size, len("bytes"))
	}
}

func TestResourceHandlerPutReplacesBodyAndCleansUpOldFile(t *testing.T) {
	env := newTestEnv(t)
	putTestNote(t, env, "nb1", "n1")
	h := &ResourceHandler{base: env.newBase(t)}
	ctx := context.Background()

	r := &types.Resource{LocalID: "r1", NoteLocalID: "n1", Data: &types.ResourceBody{Body: []byte("version one")}}
	if _, err := h.Put(ctx, r).Wait(); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}

	r2 := &types.Resource{LocalID: "r1", NoteLocalID: "n1", Data: &types.ResourceBody{Body: []byte("version two")}}
	if _, err := h.Put(ctx, r2).Wait(); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	found, err := h.FindByLocalID(ctx, "r1", true).Wait()
	if err != nil {
		t.Fatalf("FindByLocalID() error = %v", err)
	}
	if !bytes.Equal(found.Data.Body, []byte("version two")) {
		t.Fatalf("Data.Body = %q, want %q", found.Data.Body, "version two")
	}
}

func TestResourceHandlerExpungeByLocalID(t *testing.T) {
	env := newTestEnv(t)
	putTestNote(t, env, "nb1", "n1")
	h := &ResourceHandler{base: env.newBase(t)}
	ctx := context.Background()

	r := &types.Resource{LocalID: "r1", NoteLocalID: "n1", Data: &types.ResourceBody{Body: []byte("bytes")}}
	if _, err := h.Put(ctx, r).Wait(); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := h.ExpungeByLocalID(ctx, "r1").Wait(); err != nil {
		t.Fatalf("ExpungeByLocalID() error = %v", err)
	}

	found, err := h.FindByLocalID(ctx, "r1", false).Wait()
	if err != nil {
		t.Fatalf("FindByLocalID() error = %v", err)
	}
	if found != nil {
		t.Fatalf("FindByLocalID() after expunge = %+v, want nil", found)
	}
}

func TestResourceHandlerCountPerNote(t *testing.T) {
	env := newTestEnv(t)
	putTestNote(t, env, "nb1", "n1")
	h := &ResourceHandler{base: env.newBase(t)}
	ctx := context.Background()

	for _, id := range []string{"r1", "r2"} {
		r := &types.Resource{LocalID: id, NoteLocalID: "n1", Data: &types.ResourceBody{Body: []byte(id)}}
		if _, err := h.Put(ctx, r).Wait(); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	n, err := h.CountPerNote(ctx, "n1").Wait()
	if err != nil {
		t.Fatalf("CountPerNote() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("CountPerNote() = %d, want 2", n)
	}
}
