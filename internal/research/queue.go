package research

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Queue serializes research job processing. Jobs run strictly in enqueue
// order with at most one in flight; a failing job is logged and the drain
// continues with the next.
type Queue struct {
	orchestrator *Orchestrator

	mu      sync.Mutex
	pending []string
	active  bool
	wg      sync.WaitGroup
}

func NewQueue(orchestrator *Orchestrator) *Queue {
	return &Queue{orchestrator: orchestrator}
}

// Enqueue adds a research job and returns immediately. If no drain is
// running, one is started.
func (q *Queue) Enqueue(ctx context.Context, researchID string) {
	q.mu.Lock()
	q.pending = append(q.pending, researchID)
	if q.active {
		q.mu.Unlock()
		return
	}
	q.active = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.drain(ctx)
}

// drain processes jobs one at a time until the queue is empty, then exits.
// A later Enqueue starts a fresh drain.
func (q *Queue) drain(ctx context.Context) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.active = false
			q.mu.Unlock()
			return
		}
		researchID := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := q.orchestrator.ProcessResearch(ctx, researchID); err != nil {
			zap.L().Error("research: queued job failed",
				zap.String("research_id", researchID),
				zap.Error(err))
		}
	}
}

// Wait blocks until the current drain, if any, finishes. Jobs enqueued after
// Wait returns start a new drain.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Len reports the number of jobs not yet picked up.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
