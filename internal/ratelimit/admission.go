// admission.go - Bounded permit pool in front of the inference engine

package ratelimit

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Admission caps the number of in-flight engine calls at a fixed capacity.
// No order is guaranteed among waiters.
type Admission struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
	waiting  atomic.Int64
}

// NewAdmission creates a pool with the given capacity (at least 1).
func NewAdmission(capacity int) *Admission {
	if capacity < 1 {
		capacity = 1
	}
	return &Admission{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a permit is available or ctx is done.
// On error no permit is held.
func (a *Admission) Acquire(ctx context.Context) error {
	a.waiting.Add(1)
	err := a.sem.Acquire(ctx, 1)
	a.waiting.Add(-1)
	if err != nil {
		return err
	}
	a.inFlight.Add(1)
	return nil
}

// Release returns a permit taken by a successful Acquire.
func (a *Admission) Release() {
	if a.inFlight.Add(-1) < 0 {
		a.inFlight.Add(1)
		panic(errors.New("ratelimit: release without matching acquire"))
	}
	a.sem.Release(1)
}

// Capacity returns the fixed permit count.
func (a *Admission) Capacity() int {
	return a.capacity
}

// InFlight returns the number of permits currently held.
func (a *Admission) InFlight() int {
	return int(a.inFlight.Load())
}

// Waiting returns the number of callers blocked in Acquire.
func (a *Admission) Waiting() int {
	return int(a.waiting.Load())
}
