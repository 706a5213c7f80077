package sync

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLazy_LoadsOnce(t *testing.T) {
	var calls atomic.Int32
	cell := NewLazy(func() (string, error) {
		calls.Add(1)
		return "meta", nil
	})

	if cell.Loaded() {
		t.Fatal("cell loaded before first Get")
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cell.Get()
			if err != nil || v != "meta" {
				t.Errorf("Get = %q, %v", v, err)
			}
		}()
	}
	wg.Wait()

	if c := calls.Load(); c != 1 {
		t.Errorf("load calls = %d, want 1", c)
	}
	if !cell.Loaded() {
		t.Error("cell should be loaded")
	}
}

func TestLazy_FailureNotCached(t *testing.T) {
	var calls atomic.Int32
	errDisk := errors.New("disk unavailable")
	fail := true
	cell := NewLazy(func() (int, error) {
		calls.Add(1)
		if fail {
			return 0, errDisk
		}
		return 7, nil
	})

	if _, err := cell.Get(); err != errDisk {
		t.Fatalf("Get returned %v, want %v", err, errDisk)
	}
	if cell.Loaded() {
		t.Error("Loaded() should be false after error")
	}

	fail = false
	for i := 0; i < 2; i++ {
		v, err := cell.Get()
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != 7 {
			t.Errorf("Get = %d, want 7", v)
		}
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("load calls = %d, want 2", c)
	}
}
