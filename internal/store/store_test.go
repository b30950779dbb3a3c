package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/pairmatch/pairmatch/internal/engine"
)

func run(id string) *engine.Run {
	return &engine.Run{ID: id, Result: &engine.Result{}}
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPutAndGet(t *testing.T) {
	st := New(time.Hour)
	st.Put(run("r1"))

	e, ok := st.Get("r1")
	if !ok {
		t.Fatal("Get: expected entry, got none")
	}
	if e.Run.ID != "r1" {
		t.Errorf("ID: got %q, want r1", e.Run.ID)
	}
	if _, ok := st.Get("r2"); ok {
		t.Error("Get r2: expected false")
	}
}

func TestLatest(t *testing.T) {
	st := New(time.Hour)
	if _, ok := st.Latest(); ok {
		t.Fatal("Latest on empty store: expected false")
	}
	st.Put(run("r1"))
	st.Put(run("r2"))

	e, ok := st.Latest()
	if !ok || e.Run.ID != "r2" {
		t.Fatalf("Latest: got %v %v, want r2", e, ok)
	}
}

func TestList_NewestFirstExcludingStale(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute)) // stale
	st.Put(run("old"))
	st.now = fixedClock(base.Add(-2 * time.Minute))
	st.Put(run("mid"))
	st.now = fixedClock(base)
	st.Put(run("new"))

	entries := st.List()
	if len(entries) != 2 {
		t.Fatalf("List: got %d entries, want 2", len(entries))
	}
	if entries[0].Run.ID != "new" || entries[1].Run.ID != "mid" {
		t.Errorf("List order: got %s, %s", entries[0].Run.ID, entries[1].Run.ID)
	}
	if n := st.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestEvict_KeepsLatest(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-20 * time.Minute))
	st.Put(run("old"))
	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put(run("latest"))

	if n := st.Evict(base); n != 1 {
		t.Errorf("Evict: removed %d, want 1", n)
	}
	if _, ok := st.Get("old"); ok {
		t.Error("old run still present after Evict")
	}
	if _, ok := st.Latest(); !ok {
		t.Error("latest run evicted")
	}
	st.now = fixedClock(base)
	if got := len(st.List()); got != 1 {
		t.Errorf("List after Evict: got %d, want 1", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := New(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentAccess(t *testing.T) {
	st := New(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			st.Put(run(string(rune('a' + i%26))))
		}(i)
		go func() {
			defer wg.Done()
			st.List()
			st.Latest()
		}()
	}
	wg.Wait()
	if st.Count() == 0 {
		t.Error("Count: expected entries after concurrent puts")
	}
}
