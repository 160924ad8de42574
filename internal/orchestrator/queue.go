package orchestrator

import (
	"sync"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

// queued is one schedulable unit: a task plus its owning session.
type queued struct {
	s    *session
	task *models.AnalysisTask
	seq  uint64
}

// taskQueue is a priority queue drained by the worker pool. Higher
// priority runs first; equal priorities run in arrival order.
type taskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []queued
	seq    uint64
	closed bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *taskQueue) push(s *session, task *models.AnalysisTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.seq++
	q.items = append(q.items, queued{s: s, task: task, seq: q.seq})
	q.cond.Signal()
}

// pop blocks until an item is available or the queue is closed. It
// returns the highest-priority pending item, FIFO within a priority.
func (q *taskQueue) pop() (*session, *models.AnalysisTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, nil, false
	}

	best := 0
	for i := 1; i < len(q.items); i++ {
		if q.items[i].task.Priority > q.items[best].task.Priority ||
			(q.items[i].task.Priority == q.items[best].task.Priority && q.items[i].seq < q.items[best].seq) {
			best = i
		}
	}
	item := q.items[best]
	q.items = append(q.items[:best], q.items[best+1:]...)
	return item.s, item.task, true
}

// close wakes all workers; pending items are dropped.
func (q *taskQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.cond.Broadcast()
	q.mu.Unlock()
}
