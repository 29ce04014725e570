package task

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(0)

	created, err := r.Create("t1", Params{Resolution: "tiny"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != StatusPending || created.Result != nil || created.Error != "" {
		t.Fatalf("unexpected new task: %+v", created)
	}

	if _, err := r.Complete("t1", &Result{Text: "x"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending -> completed must be rejected, got %v", err)
	}

	if _, err := r.MarkProcessing("t1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if _, err := r.MarkProcessing("t1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("processing entered twice, got %v", err)
	}

	done, err := r.Complete("t1", &Result{Text: "hello"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != StatusCompleted || done.CompletedAt == nil || done.StartedAt == nil {
		t.Fatalf("unexpected completed task: %+v", done)
	}

	// terminal states never change
	if _, err := r.Fail("t1", "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completed -> failed must be rejected, got %v", err)
	}
	got, _ := r.Get("t1")
	if got.Error != "" || got.Result == nil || got.Result.Text != "hello" {
		t.Fatalf("terminal task changed: %+v", got)
	}
}

func TestRegistryFailFromPending(t *testing.T) {
	r := NewRegistry(0)
	r.Create("t1", Params{})

	failed, err := r.Fail("t1", "shutdown")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if failed.Status != StatusFailed || failed.Error != "shutdown" || failed.Result != nil {
		t.Fatalf("unexpected failed task: %+v", failed)
	}
	if _, err := r.MarkProcessing("t1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("failed -> processing must be rejected, got %v", err)
	}
}

func TestRegistryNotFoundAndDuplicate(t *testing.T) {
	r := NewRegistry(0)
	if _, err := r.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.MarkProcessing("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	r.Create("t1", Params{})
	if _, err := r.Create("t1", Params{}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestRegistryListKeepsSubmissionOrder(t *testing.T) {
	r := NewRegistry(0)
	for i := 0; i < 5; i++ {
		r.Create(fmt.Sprintf("t%d", i), Params{})
	}
	r.MarkProcessing("t3")

	list := r.List()
	if len(list) != 5 {
		t.Fatalf("expected 5 tasks, got %d", len(list))
	}
	for i, task := range list {
		if task.ID != fmt.Sprintf("t%d", i) {
			t.Fatalf("position %d holds %s", i, task.ID)
		}
	}
}

func TestRegistrySnapshotsAreCopies(t *testing.T) {
	r := NewRegistry(0)
	snap, _ := r.Create("t1", Params{Resolution: "base"})
	snap.Status = StatusCompleted
	snap.Params.Resolution = "tiny"

	got, _ := r.Get("t1")
	if got.Status != StatusPending || got.Params.Resolution != "base" {
		t.Fatalf("registry mutated through snapshot: %+v", got)
	}
}

func TestRegistrySweepEvictsOnlyExpiredTerminalTasks(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Hour)
	r.now = func() time.Time { return base }

	r.Create("done", Params{})
	r.MarkProcessing("done")
	r.Complete("done", &Result{})
	r.Create("failed", Params{})
	r.Fail("failed", "boom")
	r.Create("running", Params{})
	r.MarkProcessing("running")
	r.Create("queued", Params{})

	if n := r.Sweep(base.Add(30 * time.Minute)); n != 0 {
		t.Fatalf("nothing has expired yet, evicted %d", n)
	}
	if n := r.Sweep(base.Add(2 * time.Hour)); n != 2 {
		t.Fatalf("expected 2 evictions, got %d", n)
	}

	list := r.List()
	if len(list) != 2 || list[0].ID != "running" || list[1].ID != "queued" {
		t.Fatalf("unexpected survivors: %+v", list)
	}
	if _, err := r.Get("done"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("evicted task still visible: %v", err)
	}
}

func TestRegistryObserverSeesEveryTransition(t *testing.T) {
	r := NewRegistry(0)
	var seen []Status
	r.Observe(func(t Task) { seen = append(seen, t.Status) })

	r.Create("t1", Params{})
	r.MarkProcessing("t1")
	r.Fail("t1", "x")
	r.Fail("t1", "again")

	want := []Status{StatusPending, StatusProcessing, StatusFailed}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(time.Millisecond)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i)
			r.Create(id, Params{})
			r.MarkProcessing(id)
			if i%2 == 0 {
				r.Complete(id, &Result{Text: id})
			} else {
				r.Fail(id, id)
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, task := range r.List() {
				if task.Result != nil && task.Error != "" {
					t.Errorf("task %s has both result and error", task.ID)
				}
			}
			r.Sweep(time.Now())
		}()
	}
	wg.Wait()
}
