package sqlite

import (
	"context"
	"testing"
)

func TestVersionDefaultsToOneWhenAuxiliaryEmpty(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := InitializeTables(ctx, db); err != nil {
		t.Fatalf("InitializeTables() error: %v", err)
	}

	v, err := Version(ctx, db)
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if v != 1 {
		t.Fatalf("Version() = %d, want 1", v)
	}
}

func TestVersionReadsAuxiliaryRow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := InitializeTables(ctx, db); err != nil {
		t.Fatalf("InitializeTables() error: %v", err)
	}
	if err := bumpVersion(ctx, db, 2); err != nil {
		t.Fatalf("bumpVersion() error: %v", err)
	}

	v, err := Version(ctx, db)
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if v != 2 {
		t.Fatalf("Version() = %d, want 2", v)
	}
}

func TestRequiresUpgradeAndIsVersionTooHigh(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := InitializeTables(ctx, db); err != nil {
		t.Fatalf("InitializeTables() error: %v", err)
	}

	requires, err := RequiresUpgrade(ctx, db)
	if err != nil {
		t.Fatalf("RequiresUpgrade() error: %v", err)
	}
	if !requires {
		t.Fatal("expected a version-1 database to require upgrade")
	}

	tooHigh, err := IsVersionTooHigh(ctx, db)
	if err != nil {
		t.Fatalf("IsVersionTooHigh() error: %v", err)
	}
	if tooHigh {
		t.Fatal("version 1 should never be too high")
	}

	if err := bumpVersion(ctx, db, HighestSupportedVersion+1); err != nil {
		t.Fatalf("bumpVersion() error: %v", err)
	}
	tooHigh, err = IsVersionTooHigh(ctx, db)
	if err != nil {
		t.Fatalf("IsVersionTooHigh() error: %v", err)
	}
	if !tooHigh {
		t.Fatal("expected version above HighestSupportedVersion to be too high")
	}
}

func TestRequiredPatchesAtEachStartingVersion(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := InitializeTables(ctx, db); err != nil {
		t.Fatalf("InitializeTables() error: %v", err)
	}

	deps := PatchDependencies{DB: db}

	patches, err := RequiredPatches(ctx, db, deps)
	if err != nil {
		t.Fatalf("RequiredPatches() at v1 error: %v", err)
	}
	if len(patches) != 2 {
		t.Fatalf("len(patches) at v1 = %d, want 2", len(patches))
	}
	if patches[0].FromVersion() != 1 || patches[1].FromVersion() != 2 {
		t.Fatalf("unexpected patch order: %d, %d", patches[0].FromVersion(), patches[1].FromVersion())
	}

	if err := bumpVersion(ctx, db, 2); err != nil {
		t.Fatalf("bumpVersion() error: %v", err)
	}
	patches, err = RequiredPatches(ctx, db, deps)
	if err != nil {
		t.Fatalf("RequiredPatches() at v2 error: %v", err)
	}
	if len(patches) != 1 || patches[0].FromVersion() != 2 {
		t.Fatalf("unexpected patches at v2: %+v", patches)
	}

	if err := bumpVersion(ctx, db, HighestSupportedVersion); err != nil {
		t.Fatalf("bumpVersion() error: %v", err)
	}
	patches, err = RequiredPatches(ctx, db, deps)
	if err != nil {
		t.Fatalf("RequiredPatches() at highest version error: %v", err)
	}
	if len(patches) != 0 {
		t.Fatalf("expected no patches at highest version, got %d", len(patches))
	}
}
