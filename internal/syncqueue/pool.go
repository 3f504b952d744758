package syncqueue

import (
	"context"
	"sort"
	"sync"
)

// Pool keeps one queue per signed-in user
type Pool struct {
	mu     sync.Mutex
	queues map[int64]*Queue
	remote Remote
	opts   Options
}

// NewPool creates an empty queue pool
func NewPool(remote Remote, opts Options) *Pool {
	return &Pool{
		queues: make(map[int64]*Queue),
		remote: remote,
		opts:   opts,
	}
}

// For returns the user's queue, creating it on first use
func (p *Pool) For(userID int64) *Queue {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.queues[userID]
	if !ok {
		q = New(p.remote, User(userID), p.opts)
		p.queues[userID] = q
	}
	return q
}

// FlushAll flushes every queue that has pending entries
func (p *Pool) FlushAll(ctx context.Context) map[int64]Status {
	p.mu.Lock()
	ids := make([]int64, 0, len(p.queues))
	for id := range p.queues {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make(map[int64]Status)
	for _, id := range ids {
		q := p.For(id)
		if q.PendingSize() == 0 {
			continue
		}
		out[id] = q.Flush(ctx)
	}
	return out
}

// PendingSize is the number of pending entries across all users
func (p *Pool) PendingSize() int {
	p.mu.Lock()
	queues := make([]*Queue, 0, len(p.queues))
	for _, q := range p.queues {
		queues = append(queues, q)
	}
	p.mu.Unlock()

	n := 0
	for _, q := range queues {
		n += q.PendingSize()
	}
	return n
}
