package sqlite

import (
	"context"
	"testing"
	"time"
)

func TestAcquireAccessLockSharedConcurrent(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	l1, err := AcquireAccessLock(ctx, root, false, time.Second)
	if err != nil {
		t.Fatalf("first shared lock: %v", err)
	}
	defer l1.Release()

	l2, err := AcquireAccessLock(ctx, root, false, time.Second)
	if err != nil {
		t.Fatalf("second shared lock: %v", err)
	}
	defer l2.Release()
}

func TestAcquireAccessLockExclusiveBlocksShared(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	writer, err := AcquireAccessLock(ctx, root, true, time.Second)
	if err != nil {
		t.Fatalf("exclusive lock: %v", err)
	}
	defer writer.Release()

	_, err = AcquireAccessLock(ctx, root, false, 100*time.Millisecond)
	if err == nil {
		t.Fatal("expected shared lock to fail while writer holds exclusive lock")
	}
}

func TestAcquireAccessLockReleaseAllowsReacquire(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	l, err := AcquireAccessLock(ctx, root, true, time.Second)
	if err != nil {
		t.Fatalf("first exclusive lock: %v", err)
	}
	l.Release()

	l2, err := AcquireAccessLock(ctx, root, true, time.Second)
	if err != nil {
		t.Fatalf("second exclusive lock after release: %v", err)
	}
	defer l2.Release()
}

func TestAccessLockReleaseIdempotent(t *testing.T) {
	root := t.TempDir()
	l, err := AcquireAccessLock(context.Background(), root, true, time.Second)
	if err != nil {
		t.Fatalf("exclusive lock: %v", err)
	}
	l.Release()
	l.Release() // must not panic
}
