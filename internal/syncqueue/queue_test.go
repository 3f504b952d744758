package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeRemote struct {
	mu      sync.Mutex
	batches [][]Entry
	userIDs []int64
	fail    error
	// hook runs inside CommitBatch before returning
	hook func(ctx context.Context) error
}

func (f *fakeRemote) CommitBatch(ctx context.Context, userID int64, entries []Entry) error {
	if f.hook != nil {
		if err := f.hook(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.batches = append(f.batches, append([]Entry(nil), entries...))
	f.userIDs = append(f.userIDs, userID)
	return nil
}

func (f *fakeRemote) committed() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Entry
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

type signedOut struct{}

func (signedOut) UserID() (int64, bool) { return 0, false }

func payload(s string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"v":%q}`, s))
}

func TestEnqueueKeepsLatestPayload(t *testing.T) {
	remote := &fakeRemote{}
	q := New(remote, User(7), Options{})

	q.Enqueue("item-1", payload("first"))
	q.Enqueue("item-1", payload("second"))

	if got := q.PendingSize(); got != 1 {
		t.Fatalf("PendingSize() = %d, want 1", got)
	}
	if status := q.Flush(context.Background()); status != StatusSuccess {
		t.Fatalf("Flush() = %s, want SUCCESS", status)
	}
	entries := remote.committed()
	if len(entries) != 1 || string(entries[0].Payload) != string(payload("second")) {
		t.Fatalf("committed %+v, want only the second payload", entries)
	}
	if remote.userIDs[0] != 7 {
		t.Fatalf("committed for user %d, want 7", remote.userIDs[0])
	}
}

func TestFlushTwice(t *testing.T) {
	remote := &fakeRemote{}
	q := New(remote, User(1), Options{})
	q.Enqueue("a", payload("a"))
	q.Enqueue("b", payload("b"))

	for i := 0; i < 2; i++ {
		if status := q.Flush(context.Background()); status != StatusSuccess {
			t.Fatalf("flush %d = %s, want SUCCESS", i+1, status)
		}
		if got := q.PendingSize(); got != 0 {
			t.Fatalf("flush %d left %d pending", i+1, got)
		}
	}
	if len(remote.batches) != 1 {
		t.Fatalf("remote called %d times, want 1 (empty flush makes no call)", len(remote.batches))
	}
}

func TestFlushRestoresOnFailure(t *testing.T) {
	remote := &fakeRemote{fail: errors.New("connection reset")}
	q := New(remote, User(1), Options{})
	for i := 0; i < 5; i++ {
		q.Enqueue(fmt.Sprintf("item-%d", i), payload("x"))
	}
	before := q.PendingSize()

	if status := q.Flush(context.Background()); status != StatusOffline {
		t.Fatalf("Flush() = %s, want OFFLINE", status)
	}
	if got := q.PendingSize(); got != before {
		t.Fatalf("PendingSize() = %d after failed flush, want %d", got, before)
	}

	remote.mu.Lock()
	remote.fail = nil
	remote.mu.Unlock()
	if status := q.Flush(context.Background()); status != StatusSuccess {
		t.Fatalf("retry Flush() = %s, want SUCCESS", status)
	}
	if got := len(remote.committed()); got != before {
		t.Fatalf("retry committed %d entries, want %d", got, before)
	}
}

func TestFailedFlushKeepsConcurrentWrites(t *testing.T) {
	var q *Queue
	remote := &fakeRemote{}
	remote.hook = func(ctx context.Context) error {
		q.Enqueue("a", payload("newer"))
		q.Enqueue("c", payload("c"))
		return errors.New("backend unavailable")
	}
	q = New(remote, User(1), Options{})
	q.Enqueue("a", payload("older"))
	q.Enqueue("b", payload("b"))

	if status := q.Flush(context.Background()); status != StatusOffline {
		t.Fatalf("Flush() = %s, want OFFLINE", status)
	}
	if got := q.PendingSize(); got != 3 {
		t.Fatalf("PendingSize() = %d, want 3", got)
	}

	remote.hook = nil
	if status := q.Flush(context.Background()); status != StatusSuccess {
		t.Fatalf("Flush() = %s, want SUCCESS", status)
	}
	for _, e := range remote.committed() {
		if e.ItemID == "a" && string(e.Payload) != string(payload("newer")) {
			t.Fatalf("restore clobbered the newer payload: %s", e.Payload)
		}
	}
}

func TestConcurrentFlushesDoNotDoubleCommit(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	remote := &fakeRemote{}
	var once sync.Once
	remote.hook = func(ctx context.Context) error {
		once.Do(func() {
			close(entered)
			<-release
		})
		return nil
	}
	q := New(remote, User(1), Options{})
	for i := 0; i < 10; i++ {
		q.Enqueue(fmt.Sprintf("item-%02d", i), payload("x"))
	}

	done := make(chan Status)
	go func() { done <- q.Flush(context.Background()) }()
	<-entered

	// the first flush holds the snapshot; this one sees an empty queue
	if status := q.Flush(context.Background()); status != StatusSuccess {
		t.Fatalf("second Flush() = %s, want SUCCESS", status)
	}
	close(release)
	if status := <-done; status != StatusSuccess {
		t.Fatalf("first Flush() = %s, want SUCCESS", status)
	}

	if got := len(remote.committed()); got != 10 {
		t.Fatalf("committed %d entries, want 10", got)
	}
}

func TestFlushWithoutIdentity(t *testing.T) {
	remote := &fakeRemote{}
	q := New(remote, signedOut{}, Options{})
	q.Enqueue("a", payload("a"))

	if status := q.Flush(context.Background()); status != StatusError {
		t.Fatalf("Flush() = %s, want ERROR", status)
	}
	if got := q.PendingSize(); got != 1 {
		t.Fatalf("PendingSize() = %d, want 1 (queue untouched)", got)
	}
	if len(remote.batches) != 0 {
		t.Fatal("remote was called without an identity")
	}
}

func TestFlushChunks(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		entries    int
		wantChunks []int
	}{
		{name: "single chunk", opts: Options{MaxBatchSize: 10, SafetyMargin: 2}, entries: 8, wantChunks: []int{8}},
		{name: "remainder chunk", opts: Options{MaxBatchSize: 10, SafetyMargin: 2}, entries: 20, wantChunks: []int{8, 8, 4}},
		{name: "defaults", opts: Options{SafetyMargin: DefaultSafetyMargin}, entries: 460, wantChunks: []int{450, 10}},
		{name: "margin larger than batch", opts: Options{MaxBatchSize: 3, SafetyMargin: 5}, entries: 2, wantChunks: []int{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{}
			q := New(remote, User(1), tt.opts)
			for i := 0; i < tt.entries; i++ {
				q.Enqueue(fmt.Sprintf("item-%04d", i), payload("x"))
			}
			if status := q.Flush(context.Background()); status != StatusSuccess {
				t.Fatalf("Flush() = %s", status)
			}
			if len(remote.batches) != len(tt.wantChunks) {
				t.Fatalf("got %d chunks, want %d", len(remote.batches), len(tt.wantChunks))
			}
			prev := ""
			for i, b := range remote.batches {
				if len(b) != tt.wantChunks[i] {
					t.Errorf("chunk %d has %d entries, want %d", i, len(b), tt.wantChunks[i])
				}
				for _, e := range b {
					if e.ItemID <= prev {
						t.Fatalf("entries out of order: %s after %s", e.ItemID, prev)
					}
					prev = e.ItemID
				}
			}
		})
	}
}

func TestChunkTimeoutRestores(t *testing.T) {
	remote := &fakeRemote{}
	remote.hook = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	q := New(remote, User(1), Options{ChunkTimeout: 10 * time.Millisecond})
	q.Enqueue("a", payload("a"))

	if status := q.Flush(context.Background()); status != StatusOffline {
		t.Fatalf("Flush() = %s, want OFFLINE", status)
	}
	if got := q.PendingSize(); got != 1 {
		t.Fatalf("PendingSize() = %d, want 1", got)
	}
}

func TestObserve(t *testing.T) {
	remote := &fakeRemote{}
	q := New(remote, User(1), Options{})

	var results []FlushResult
	reg := q.Observe(func(r FlushResult) { results = append(results, r) })

	q.Enqueue("a", payload("a"))
	q.Flush(context.Background())
	reg.Unregister()
	reg.Unregister()
	q.Flush(context.Background())

	if len(results) != 1 {
		t.Fatalf("observer called %d times, want 1", len(results))
	}
	if results[0].Status != StatusSuccess || results[0].Committed != 1 || results[0].Pending != 0 {
		t.Fatalf("result = %+v", results[0])
	}
}

func TestPoolFlushAll(t *testing.T) {
	remote := &fakeRemote{}
	pool := NewPool(remote, Options{})

	pool.For(1).Enqueue("a", payload("a"))
	pool.For(2).Enqueue("b", payload("b"))
	pool.For(2).Enqueue("c", payload("c"))
	pool.For(3)

	if pool.For(2) != pool.For(2) {
		t.Fatal("For returned different queues for the same user")
	}
	if got := pool.PendingSize(); got != 3 {
		t.Fatalf("PendingSize() = %d, want 3", got)
	}

	statuses := pool.FlushAll(context.Background())
	if len(statuses) != 2 || statuses[1] != StatusSuccess || statuses[2] != StatusSuccess {
		t.Fatalf("FlushAll() = %v", statuses)
	}
	if pool.PendingSize() != 0 {
		t.Fatalf("PendingSize() = %d after FlushAll", pool.PendingSize())
	}
	if len(remote.userIDs) != 2 || remote.userIDs[0] != 1 || remote.userIDs[1] != 2 {
		t.Fatalf("committed for users %v, want [1 2]", remote.userIDs)
	}
}
