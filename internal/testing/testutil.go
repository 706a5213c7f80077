// Package testing provides test utilities for the numass packages.
//
// GoroutineTest collects errors from goroutines so that no goroutine calls
// t.Fatal. The fixture helpers write runs to a backend.
package testing

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// GoroutineTest runs functions concurrently and reports their errors from
// the test goroutine. t.FailNow only exits the calling goroutine, so
// helpers started with Go return errors instead.
//
//	gt := ntesting.NewGoroutineTest(t)
//	defer gt.Wait()
//	gt.Go(func() error {
//	    n, err := types.CountEvents(types.PointEvents(p))
//	    if err != nil {
//	        return fmt.Errorf("count: %w", err)
//	    }
//	    return ntesting.AssertEqual(n, 2, "events")
//	})
type GoroutineTest struct {
	t    *testing.T
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// NewGoroutineTest creates a new GoroutineTest helper.
func NewGoroutineTest(t *testing.T) *GoroutineTest {
	return &GoroutineTest{t: t}
}

// Go runs fn in a goroutine and records a non-nil result.
func (gt *GoroutineTest) Go(fn func() error) {
	gt.wg.Add(1)
	go func() {
		defer gt.wg.Done()
		if err := fn(); err != nil {
			gt.mu.Lock()
			gt.errs = append(gt.errs, err)
			gt.mu.Unlock()
		}
	}()
}

// Wait blocks until every goroutine returned and fails the test if any
// of them reported an error.
func (gt *GoroutineTest) Wait() {
	gt.t.Helper()
	gt.wg.Wait()

	gt.mu.Lock()
	defer gt.mu.Unlock()
	if len(gt.errs) > 0 {
		gt.t.Fatalf("%d goroutine(s) failed:\n%v", len(gt.errs), errors.Join(gt.errs...))
	}
}

// AssertEqual returns an error if got != want.
func AssertEqual[T comparable](got, want T, msg string) error {
	if got != want {
		return fmt.Errorf("%s: got %v, want %v", msg, got, want)
	}
	return nil
}
