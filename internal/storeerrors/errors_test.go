package storeerrors

import (
	"database/sql"
	"errors"
	"testing"
)

func TestWrapDB(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		err      error
		wantNil  bool
		wantKind Kind
		wantMsg  string
	}{
		{
			name:    "nil error returns nil",
			op:      "find notebook",
			err:     nil,
			wantNil: true,
		},
		{
			name:     "sql.ErrNoRows becomes NotFound",
			op:       "find notebook",
			err:      sql.ErrNoRows,
			wantKind: NotFound,
			wantMsg:  "find notebook: sql: no rows in result set",
		},
		{
			name:     "generic error becomes StorageOperation",
			op:       "insert notebook",
			err:      errors.New("database is locked"),
			wantKind: StorageOperation,
			wantMsg:  "insert notebook: database is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapDB(tt.op, tt.err)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("WrapDB() = %v, want nil", got)
				}
				return
			}
			if got.Error() != tt.wantMsg {
				t.Fatalf("WrapDB().Error() = %q, want %q", got.Error(), tt.wantMsg)
			}
			if !OfKind(got, tt.wantKind) {
				t.Fatalf("OfKind(got, %v) = false, want true", tt.wantKind)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	notFound := New(NotFound, "find tag", "no such tag")
	wrapped := Wrap(NotFound, "find tag", notFound)

	if !errors.Is(wrapped, New(NotFound, "", "")) {
		t.Fatal("expected wrapped error to match NotFound sentinel by kind")
	}
	if errors.Is(wrapped, New(Conflict, "", "")) {
		t.Fatal("expected wrapped error not to match Conflict sentinel")
	}
}

func TestKindString(t *testing.T) {
	if InvalidArgument.String() != "InvalidArgument" {
		t.Fatalf("unexpected String(): %s", InvalidArgument.String())
	}
	if Kind(99).String() != "Unknown" {
		t.Fatalf("unexpected String() for unknown kind: %s", Kind(99).String())
	}
}
