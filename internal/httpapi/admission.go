package httpapi

import (
	"context"
	"time"

	"songd/pkg/types"
)

// Defaults applied when corresponding Options fields are unset.
const (
	defaultQueueCapacity = 20
	defaultMaxWait       = 30 * time.Second
)

// admission is the bounded holding structure that caps concurrently admitted
// interactive sessions. A request first reserves a queue slot, then the
// single in-flight slot; both are released together when the work ends.
type admission struct {
	queueCh chan struct{} // buffered: queue slots
	genCh   chan struct{} // size 1: single in-flight generation
	maxWait time.Duration
}

func newAdmission(capacity int, maxWait time.Duration) *admission {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &admission{
		queueCh: make(chan struct{}, capacity),
		genCh:   make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// acquire reserves a queue slot and then the in-flight slot.
// Returns a release func to be deferred.
func (a *admission) acquire(ctx context.Context) (func(), error) {
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(a.maxWait)
	defer timer.Stop()
	select {
	case a.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-a.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := time.NewTimer(a.maxWait)
	defer timer2.Stop()
	select {
	case a.genCh <- struct{}{}:
		acquired = true
		return func() { <-a.genCh; <-a.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		return func() {}, tooBusyError{}
	}
}

// status snapshots the queue for /status.
func (a *admission) status() types.QueueStatus {
	return types.QueueStatus{
		Capacity: cap(a.queueCh),
		QueueLen: len(a.queueCh),
		Inflight: len(a.genCh),
	}
}
