package incremental

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestComputeCachesUntilInvalidated(t *testing.T) {
	e := New()
	runs := 0
	compute := func() int {
		v, err := Compute(e, nil, "sum", func(f *Frame) (int, error) {
			runs++
			f.Read("a")
			return 42, nil
		})
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		return v
	}

	compute()
	compute()
	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}
	if n := e.Invalidate("unrelated"); n != 0 {
		t.Errorf("Invalidate(unrelated) dropped %d", n)
	}
	e.Invalidate("a")
	compute()
	if runs != 2 {
		t.Errorf("runs = %d after invalidation, want 2", runs)
	}
}

func TestInvalidationIsTransitive(t *testing.T) {
	e := New()
	inner := func(f *Frame) (string, error) {
		f.Read("leaf")
		return "in", nil
	}
	outerRuns := 0
	outer := func() {
		_, err := Compute(e, nil, "outer", func(f *Frame) (string, error) {
			outerRuns++
			v, err := Compute(e, f, "inner", inner)
			return v + "+out", err
		})
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
	}

	outer()
	if !e.Cached("inner") || !e.Cached("outer") {
		t.Fatal("both entries should be cached")
	}
	if n := e.Invalidate("leaf"); n != 2 {
		t.Errorf("Invalidate(leaf) dropped %d, want 2", n)
	}
	outer()
	if outerRuns != 2 {
		t.Errorf("outer ran %d times, want 2", outerRuns)
	}
}

func TestForgetDropsKeyAndDependents(t *testing.T) {
	e := New()
	_, _ = Compute(e, nil, "outer", func(f *Frame) (int, error) {
		return Compute(e, f, "inner", func(*Frame) (int, error) { return 1, nil })
	})
	if n := e.Forget("inner"); n != 2 {
		t.Errorf("Forget dropped %d, want 2", n)
	}
	if e.Cached("outer") {
		t.Error("outer should be dropped with inner")
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	e := New()
	boom := errors.New("boom")
	_, err := Compute(e, nil, "k", func(*Frame) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if e.Cached("k") {
		t.Error("failed computation should not be cached")
	}
}

func TestCycleIsDetected(t *testing.T) {
	e := New()
	var fn func(f *Frame) (int, error)
	fn = func(f *Frame) (int, error) {
		return Compute(e, f, "self", fn)
	}
	_, err := Compute(e, nil, "self", fn)
	if !errors.Is(err, ErrCycle) {
		t.Errorf("err = %v, want ErrCycle", err)
	}
}

func TestConcurrentComputeRunsOnce(t *testing.T) {
	e := New()
	var runs atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Compute(e, nil, "slow", func(*Frame) (int, error) {
				runs.Add(1)
				<-release
				return 7, nil
			})
			if err != nil || v != 7 {
				t.Errorf("Compute = %d, %v", v, err)
			}
		}()
	}
	close(release)
	wg.Wait()
	if n := runs.Load(); n < 1 || n > 8 {
		t.Errorf("runs = %d", n)
	}
	if !e.Cached("slow") {
		t.Error("value should be cached")
	}
}

func TestChangeDuringComputeIsNotCached(t *testing.T) {
	e := New()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := Compute(e, nil, "slow", func(f *Frame) (int, error) {
			f.Read("a")
			close(started)
			<-release
			return 1, nil
		})
		if err != nil {
			t.Errorf("Compute: %v", err)
		}
	}()
	<-started
	e.Invalidate("a")
	e.Invalidate("b")
	close(release)
	<-done

	if e.Cached("slow") {
		t.Error("value computed while a changed was cached")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.invalidated) != 0 || len(e.running) != 0 {
		t.Errorf("bookkeeping kept after the computation: invalidated=%v running=%v", e.invalidated, e.running)
	}
}

func TestInvalidationsAreForgotten(t *testing.T) {
	e := New()
	for i := range 1000 {
		e.Invalidate(fmt.Sprintf("dep%d", i))
	}
	e.Clear()
	if _, err := Compute(e, nil, "k", func(f *Frame) (int, error) {
		f.Read("dep1")
		return 1, nil
	}); err != nil {
		t.Fatal(err)
	}
	if !e.Cached("k") {
		t.Error("value not cached")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := len(e.invalidated); n != 0 {
		t.Errorf("%d invalidations remembered with nothing running", n)
	}
}

func TestTrackableMap(t *testing.T) {
	e := New()
	m := NewTrackableMap[string, string](e, "replacements")
	runs := 0
	read := func() string {
		v, _ := Compute(e, nil, "view", func(f *Frame) (string, error) {
			runs++
			v, _ := m.Get(f, "x")
			return v, nil
		})
		return v
	}

	if got := read(); got != "" {
		t.Errorf("read() = %q", got)
	}
	m.Set("y", "other")
	read()
	if runs != 1 {
		t.Errorf("writing another key recomputed: runs = %d", runs)
	}
	m.Set("x", "typed")
	if got := read(); got != "typed" {
		t.Errorf("read() = %q, want typed", got)
	}
	m.Clear()
	if got := read(); got != "" {
		t.Errorf("read() after Clear = %q", got)
	}
	if runs != 3 {
		t.Errorf("runs = %d, want 3", runs)
	}
}
