// Package queue provides the FIFO of words waiting to be typed.
package queue

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded FIFO of words. An empty string is a line break.
// Any number of goroutines may Push; Pop is meant for a single consumer.
type Queue struct {
	mu     sync.Mutex
	items  []string
	notify chan struct{}
}

// New creates an empty queue
func New() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends words in order and wakes the consumer
func (q *Queue) Push(words ...string) {
	if len(words) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, words...)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes the oldest word. It waits at most timeout for one to arrive
// and returns false on timeout or when ctx is done.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (string, bool) {
	if w, ok := q.tryPop(); ok {
		return w, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", false
		case <-timer.C:
			return q.tryPop()
		case <-q.notify:
			if w, ok := q.tryPop(); ok {
				return w, true
			}
		}
	}
}

func (q *Queue) tryPop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	w := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return w, true
}

// Len returns the number of queued words
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every queued word and returns how many were dropped
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Snapshot returns a copy of the queued words
func (q *Queue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.items))
	copy(out, q.items)
	return out
}
