// registry.go - In-memory task registry with TTL eviction of finished tasks

package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Observer receives a snapshot after every change. Observers run outside the
// registry lock, in the goroutine that made the change.
type Observer func(Task)

// Registry owns every task and the only lock guarding them.
type Registry struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	order     []string
	retention time.Duration
	observers []Observer
	now       func() time.Time
}

// NewRegistry creates an empty registry. Terminal tasks older than retention are
// removed by Sweep; zero keeps them forever.
func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		tasks:     make(map[string]*Task),
		retention: retention,
		now:       time.Now,
	}
}

// Observe registers fn for all later changes. Call it before serving traffic.
func (r *Registry) Observe(fn Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

// Create registers a new pending task.
func (r *Registry) Create(id string, params Params) (Task, error) {
	r.mu.Lock()
	if _, exists := r.tasks[id]; exists {
		r.mu.Unlock()
		return Task{}, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	t := &Task{
		ID:        id,
		Status:    StatusPending,
		CreatedAt: r.now(),
		Params:    params,
	}
	r.tasks[id] = t
	r.order = append(r.order, id)
	snapshot := *t
	observers := r.observers
	r.mu.Unlock()

	notify(observers, snapshot)
	return snapshot, nil
}

// Get returns a snapshot of the task.
func (r *Registry) Get(id string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *t, nil
}

// List returns snapshots of all tasks in submission order.
func (r *Registry) List() []Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.tasks[id])
	}
	return out
}

// Len returns the number of tracked tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// MarkProcessing moves a pending task to processing.
func (r *Registry) MarkProcessing(id string) (Task, error) {
	return r.transition(id, StatusProcessing, func(t *Task, now time.Time) {
		t.StartedAt = &now
	})
}

// Complete records the result of a processing task.
func (r *Registry) Complete(id string, result *Result) (Task, error) {
	if result == nil {
		return Task{}, fmt.Errorf("%w: nil result for %s", ErrInvalidTransition, id)
	}
	return r.transition(id, StatusCompleted, func(t *Task, now time.Time) {
		t.Result = result
		t.CompletedAt = &now
	})
}

// Fail records msg as the error of a pending or processing task.
func (r *Registry) Fail(id, msg string) (Task, error) {
	return r.transition(id, StatusFailed, func(t *Task, now time.Time) {
		t.Error = msg
		t.CompletedAt = &now
	})
}

func (r *Registry) transition(id string, to Status, apply func(*Task, time.Time)) (Task, error) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !isAllowedTransition(t.Status, to) {
		from := t.Status
		r.mu.Unlock()
		return Task{}, fmt.Errorf("%w for %s: %s -> %s", ErrInvalidTransition, id, from, to)
	}
	t.Status = to
	apply(t, r.now())
	snapshot := *t
	observers := r.observers
	r.mu.Unlock()

	notify(observers, snapshot)
	return snapshot, nil
}

// Sweep evicts terminal tasks that completed more than the retention period
// before now. Pending and processing tasks are never evicted.
func (r *Registry) Sweep(now time.Time) int {
	if r.retention <= 0 {
		return 0
	}
	cutoff := now.Add(-r.retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.order[:0]
	evicted := 0
	for _, id := range r.order {
		t := r.tasks[id]
		if t.Status.IsTerminal() && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(r.tasks, id)
			evicted++
			continue
		}
		kept = append(kept, id)
	}
	clear(r.order[len(kept):])
	r.order = kept
	return evicted
}

// StartJanitor sweeps every interval until ctx is done.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if r.retention <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := r.Sweep(now); n > 0 {
					log.WithFields(log.Fields{"evicted": n, "remaining": r.Len()}).Info("🧹 Evicted finished tasks")
				}
			}
		}
	}()
}

func notify(observers []Observer, t Task) {
	for _, fn := range observers {
		fn(t)
	}
}
