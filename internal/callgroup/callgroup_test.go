package callgroup

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDeduplication(t *testing.T) {
	var g Group[string, int]
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func() (int, error) {
		calls.Add(1)
		close(started)
		<-release
		return 42, nil
	}

	const n = 10
	results := make([]Result[int], n)
	var wg sync.WaitGroup

	wg.Go(func() {
		results[0] = <-g.DoChan("rotate", fn)
	})
	<-started
	for i := 1; i < n; i++ {
		ch := g.DoChan("rotate", fn)
		wg.Go(func() {
			results[i] = <-ch
		})
	}
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("fn called %d times, want 1", got)
	}
	for i, r := range results {
		if r.Err != nil || r.Val != 42 {
			t.Errorf("caller %d: got (%d, %v), want (42, nil)", i, r.Val, r.Err)
		}
		if r.Shared != (i > 0) {
			t.Errorf("caller %d: shared = %v", i, r.Shared)
		}
	}
}

func TestIndependentKeys(t *testing.T) {
	var g Group[int, int]
	var calls atomic.Int32

	var wg sync.WaitGroup
	for _, key := range []int{1, 2, 3} {
		wg.Go(func() {
			<-g.DoChan(key, func() (int, error) {
				calls.Add(1)
				return key, nil
			})
		})
	}
	wg.Wait()

	if got := calls.Load(); got != 3 {
		t.Errorf("fn called %d times, want 3", got)
	}
}

func TestErrorPropagation(t *testing.T) {
	var g Group[int, string]
	sentinel := errors.New("failed")
	started := make(chan struct{})
	release := make(chan struct{})

	ch1 := g.DoChan(1, func() (string, error) {
		close(started)
		<-release
		return "", sentinel
	})
	<-started
	ch2 := g.DoChan(1, func() (string, error) {
		t.Error("should not execute")
		return "", nil
	})
	close(release)

	if r := <-ch1; !errors.Is(r.Err, sentinel) {
		t.Errorf("caller 1: got %v, want %v", r.Err, sentinel)
	}
	if r := <-ch2; !errors.Is(r.Err, sentinel) {
		t.Errorf("caller 2: got %v, want %v", r.Err, sentinel)
	}
}

func TestReuseAfterCompletion(t *testing.T) {
	var g Group[int, int]
	var calls atomic.Int32

	fn := func() (int, error) {
		return int(calls.Add(1)), nil
	}

	v1, shared1, err := g.Do(1, fn)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	v2, shared2, err := g.Do(1, fn)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if v1 != 1 || v2 != 2 {
		t.Errorf("values = %d, %d, want 1, 2", v1, v2)
	}
	if shared1 || shared2 {
		t.Error("sequential calls must not be shared")
	}
	if g.InFlight(1) {
		t.Error("key still in flight after completion")
	}
}

func TestInFlight(t *testing.T) {
	var g Group[int, int]
	started := make(chan struct{})
	release := make(chan struct{})

	ch := g.DoChan(7, func() (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	<-started
	if !g.InFlight(7) {
		t.Error("InFlight = false while running")
	}
	close(release)
	<-ch

	deadline := time.Now().Add(time.Second)
	for g.InFlight(7) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if g.InFlight(7) {
		t.Error("InFlight = true after completion")
	}
}
