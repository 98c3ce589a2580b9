package utils_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/retail_backend/utils"
)

func TestLocalEntityLockerSerializesSameKey(t *testing.T) {
	locker := utils.NewLocalEntityLocker(time.Second)
	ctx := context.Background()

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(ctx, utils.LockKey("supplier_advance", "a-1"))
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	if maxActive != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxActive)
	}
}

func TestLocalEntityLockerTimesOutAsBusy(t *testing.T) {
	locker := utils.NewLocalEntityLocker(20 * time.Millisecond)
	ctx := context.Background()

	release, err := locker.Lock(ctx, "purchase:p-1", "inventory_item:i-1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	// overlapping key sets in a different order must not deadlock; the second caller times out
	_, err = locker.Lock(ctx, "inventory_item:i-1", "purchase:p-2")
	if !utils.IsKind(err, utils.KindInternal) {
		t.Fatalf("expected a busy error, got %v", err)
	}
	// the partially obtained purchase:p-2 must have been released
	other, err := locker.Lock(ctx, "purchase:p-2")
	if err != nil {
		t.Fatalf("expected purchase:p-2 to be free: %v", err)
	}
	other()
	release()

	again, err := locker.Lock(ctx, "inventory_item:i-1")
	if err != nil {
		t.Fatalf("expected lock after release: %v", err)
	}
	again()
}

func TestLocalEntityLockerDuplicateKeys(t *testing.T) {
	locker := utils.NewLocalEntityLocker(20 * time.Millisecond)
	release, err := locker.Lock(context.Background(), "a:1", "a:1")
	if err != nil {
		t.Fatalf("duplicate keys should be locked once: %v", err)
	}
	release()
}
