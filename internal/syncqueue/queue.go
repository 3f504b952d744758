package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"sync"
	"time"
)

// Status is the outcome of a flush
type Status int

const (
	// StatusSuccess means every pending entry was committed, or there was nothing to commit
	StatusSuccess Status = iota
	// StatusOffline means a commit failed; entries were restored and the flush can be retried
	StatusOffline
	// StatusError means there is no signed-in identity; the caller must authenticate first
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusOffline:
		return "OFFLINE"
	case StatusError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Defaults for the remote batch limit
const (
	DefaultMaxBatchSize = 500
	DefaultSafetyMargin = 50
	DefaultChunkTimeout = 10 * time.Second
)

// ErrNoIdentity is reported to observers when a flush is attempted without a user
var ErrNoIdentity = errors.New("no authenticated identity")

// Entry is one pending item mutation
type Entry struct {
	ItemID  string          `json:"item_id"`
	Payload json.RawMessage `json:"payload"`
}

// Remote commits batches to the remote document store. Commits must be
// idempotent by ItemID since a batch may be delivered more than once.
type Remote interface {
	CommitBatch(ctx context.Context, userID int64, entries []Entry) error
}

// Identity returns the user the queue syncs for, false when nobody is signed in
type Identity interface {
	UserID() (int64, bool)
}

// User is an Identity that is always signed in
type User int64

func (u User) UserID() (int64, bool) { return int64(u), true }

// Options tune chunking
type Options struct {
	MaxBatchSize int
	SafetyMargin int
	ChunkTimeout time.Duration
}

// ChunkSize is the effective number of entries per commit
func (o Options) ChunkSize() int {
	max := o.MaxBatchSize
	if max <= 0 {
		max = DefaultMaxBatchSize
	}
	size := max - o.SafetyMargin
	if size < 1 {
		size = 1
	}
	return size
}

// FlushResult is delivered to observers after every flush
type FlushResult struct {
	Status    Status
	Committed int
	Pending   int
	Err       error
}

// Queue deduplicates item mutations and commits them to the remote store in chunks.
// The mutex guards only the in-memory map; commits run without it.
type Queue struct {
	mu      sync.Mutex
	pending map[string]json.RawMessage

	remote   Remote
	identity Identity
	opts     Options

	obsMu     sync.Mutex
	observers map[int]func(FlushResult)
	nextObs   int
}

// New creates a sync queue
func New(remote Remote, identity Identity, opts Options) *Queue {
	if opts.ChunkTimeout <= 0 {
		opts.ChunkTimeout = DefaultChunkTimeout
	}
	return &Queue{
		pending:   make(map[string]json.RawMessage),
		remote:    remote,
		identity:  identity,
		opts:      opts,
		observers: make(map[int]func(FlushResult)),
	}
}

// Enqueue stores the latest payload for an item, replacing an older pending one
func (q *Queue) Enqueue(itemID string, payload json.RawMessage) {
	q.mu.Lock()
	q.pending[itemID] = payload
	q.mu.Unlock()
}

// PendingSize returns the number of items waiting for a flush
func (q *Queue) PendingSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush commits everything pending. Entries enqueued while a flush runs stay
// pending for the next one.
func (q *Queue) Flush(ctx context.Context) Status {
	var userID int64
	var ok bool
	if q.identity != nil {
		userID, ok = q.identity.UserID()
	}
	if !ok {
		q.notify(FlushResult{Status: StatusError, Pending: q.PendingSize(), Err: ErrNoIdentity})
		return StatusError
	}

	q.mu.Lock()
	snapshot := q.pending
	q.pending = make(map[string]json.RawMessage)
	q.mu.Unlock()

	if len(snapshot) == 0 {
		q.notify(FlushResult{Status: StatusSuccess, Pending: q.PendingSize()})
		return StatusSuccess
	}

	committed, err := q.commit(ctx, userID, snapshot)
	if err != nil {
		q.restore(snapshot)
		log.Printf("Sync flush for user %d failed after %d of %d entries, restored: %v", userID, committed, len(snapshot), err)
		q.notify(FlushResult{Status: StatusOffline, Committed: committed, Pending: q.PendingSize(), Err: err})
		return StatusOffline
	}

	q.notify(FlushResult{Status: StatusSuccess, Committed: committed, Pending: q.PendingSize()})
	return StatusSuccess
}

// commit sends the snapshot in chunks ordered by item id and returns how many
// entries were committed before the first failure
func (q *Queue) commit(ctx context.Context, userID int64, snapshot map[string]json.RawMessage) (int, error) {
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	size := q.opts.ChunkSize()
	committed := 0
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunk := make([]Entry, 0, end-start)
		for _, id := range ids[start:end] {
			chunk = append(chunk, Entry{ItemID: id, Payload: snapshot[id]})
		}

		if err := q.commitChunk(ctx, userID, chunk); err != nil {
			return committed, err
		}
		committed += len(chunk)
	}
	return committed, nil
}

func (q *Queue) commitChunk(ctx context.Context, userID int64, chunk []Entry) error {
	ctx, cancel := context.WithTimeout(ctx, q.opts.ChunkTimeout)
	defer cancel()
	if err := q.remote.CommitBatch(ctx, userID, chunk); err != nil {
		return err
	}
	// a commit that ignored the deadline still counts as timed out
	return ctx.Err()
}

// restore puts the whole snapshot back without overwriting newer payloads
func (q *Queue) restore(snapshot map[string]json.RawMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, payload := range snapshot {
		if _, exists := q.pending[id]; !exists {
			q.pending[id] = payload
		}
	}
}

// Registration is an observer subscription. Unregister must be called when the
// observer goes away.
type Registration struct {
	q    *Queue
	id   int
	once sync.Once
}

// Observe registers fn to be called after every flush
func (q *Queue) Observe(fn func(FlushResult)) *Registration {
	q.obsMu.Lock()
	defer q.obsMu.Unlock()
	id := q.nextObs
	q.nextObs++
	q.observers[id] = fn
	return &Registration{q: q, id: id}
}

// Unregister removes the observer; calling it again is a no-op
func (r *Registration) Unregister() {
	r.once.Do(func() {
		r.q.obsMu.Lock()
		delete(r.q.observers, r.id)
		r.q.obsMu.Unlock()
	})
}

func (q *Queue) notify(res FlushResult) {
	q.obsMu.Lock()
	fns := make([]func(FlushResult), 0, len(q.observers))
	for _, fn := range q.observers {
		fns = append(fns, fn)
	}
	q.obsMu.Unlock()

	for _, fn := range fns {
		fn(res)
	}
}
