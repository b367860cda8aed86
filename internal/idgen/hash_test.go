package idgen

import (
	"strings"
	"testing"
)

func TestEncodeBase36Padding(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		length int
	}{
		{"zero value pads with zeros", []byte{0}, 6},
		{"small value", []byte{1}, 4},
		{"truncates to requested length", []byte{0xff, 0xff, 0xff, 0xff}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeBase36(tt.data, tt.length)
			if len(got) != tt.length {
				t.Fatalf("EncodeBase36() length = %d, want %d", len(got), tt.length)
			}
			for _, c := range got {
				if !strings.ContainsRune(base36Alphabet, c) {
					t.Fatalf("unexpected character %q in %q", c, got)
				}
			}
		})
	}
}

func TestNewLocalIDUniqueAndShaped(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := NewLocalID()
		if err != nil {
			t.Fatalf("NewLocalID() error: %v", err)
		}
		if len(id) != localIDLength {
			t.Fatalf("NewLocalID() length = %d, want %d", len(id), localIDLength)
		}
		if seen[id] {
			t.Fatalf("NewLocalID() produced duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestNewVersionIDDistinctFromLocalID(t *testing.T) {
	vid, err := NewVersionID()
	if err != nil {
		t.Fatalf("NewVersionID() error: %v", err)
	}
	if len(vid) != versionIDLength {
		t.Fatalf("NewVersionID() length = %d, want %d", len(vid), versionIDLength)
	}
}
