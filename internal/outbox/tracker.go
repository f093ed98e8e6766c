// Package outbox applies writes to the database behind the in-memory state
// and keeps the outcome of every write visible so failures can be retried.
package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cafepos/internal/monitoring"
)

// Status of a tracked write
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	// StatusSuperseded is a failed write made obsolete by a newer write
	// to the same document. It is never retried.
	StatusSuperseded Status = "superseded"
)

var (
	ErrEntryNotFound = errors.New("sync entry not found")
	ErrNotFailed     = errors.New("sync entry has not failed")
	ErrSuperseded    = errors.New("sync entry was replaced by a newer write")
)

// Op is a single write against the persistence layer
type Op struct {
	OutletID    string
	Collection  string
	Description string
	// DocumentID names the record the write targets. Writes sharing outlet,
	// collection and document replace each other; empty means unkeyed.
	DocumentID string
	Write      func(ctx context.Context) error
}

// Entry is the visible state of a tracked write
type Entry struct {
	ID          string    `json:"id"`
	OutletID    string    `json:"outlet_id"`
	Collection  string    `json:"collection"`
	DocumentID  string    `json:"document_id,omitempty"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Attempts    int       `json:"attempts"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type item struct {
	entry Entry
	key   string
	write func(ctx context.Context) error
}

func documentKey(op Op) string {
	if op.DocumentID == "" {
		return ""
	}
	return op.OutletID + "/" + op.Collection + "/" + op.DocumentID
}

// Options tune the background flusher
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	// History is how many settled entries are kept for Snapshot
	History int
}

// Tracker queues writes and flushes them in batches
type Tracker struct {
	mu      sync.Mutex
	queue   deque.Deque[*item]
	entries map[string]*item
	order   []string
	// latest maps a document key to the id of its newest write
	latest map[string]string

	batchSize     int
	flushInterval time.Duration
	history       int
	flushMu       sync.Mutex

	metrics  *monitoring.Metrics
	log      *logrus.Entry
	onChange func(Entry)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTracker creates a tracker. Call Start to flush in the background.
func NewTracker(opts Options, metrics *monitoring.Metrics, log *logrus.Entry) *Tracker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if opts.History <= 0 {
		opts.History = 500
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Tracker{
		queue:         deque.Deque[*item]{},
		entries:       make(map[string]*item),
		latest:        make(map[string]string),
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		history:       opts.History,
		metrics:       metrics,
		log:           log.WithField("component", "outbox"),
	}
}

// OnChange registers a callback invoked after every status change
func (t *Tracker) OnChange(fn func(Entry)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Enqueue records a pending write and returns its id
func (t *Tracker) Enqueue(op Op) string {
	now := time.Now()
	it := &item{
		entry: Entry{
			ID:          uuid.NewString(),
			OutletID:    op.OutletID,
			Collection:  op.Collection,
			DocumentID:  op.DocumentID,
			Description: op.Description,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		key:   documentKey(op),
		write: op.Write,
	}

	t.mu.Lock()
	var superseded []Entry
	if it.key != "" {
		if prev, ok := t.entries[t.latest[it.key]]; ok && prev.entry.Status == StatusFailed {
			prev.entry.Status = StatusSuperseded
			prev.entry.UpdatedAt = now
			superseded = append(superseded, prev.entry)
		}
		t.latest[it.key] = it.entry.ID
	}
	t.entries[it.entry.ID] = it
	t.order = append(t.order, it.entry.ID)
	t.queue.PushBack(it)
	t.prune()
	notify, e := t.onChange, it.entry
	t.mu.Unlock()

	if notify != nil {
		for _, old := range superseded {
			notify(old)
		}
		notify(e)
	}
	return e.ID
}

// prune drops the oldest settled entries beyond the history limit. Caller holds mu.
func (t *Tracker) prune() {
	excess := len(t.order) - t.history
	if excess <= 0 {
		return
	}
	kept := t.order[:0]
	for _, id := range t.order {
		it := t.entries[id]
		if excess > 0 && it.entry.Status != StatusPending {
			if t.latest[it.key] == id {
				delete(t.latest, it.key)
			}
			delete(t.entries, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
}

func (t *Tracker) nextBatch() []*item {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.queue.Len()
	if n > t.batchSize {
		n = t.batchSize
	}
	batch := make([]*item, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, t.queue.PopFront())
	}
	return batch
}

// Flush drains the queue and returns how many writes failed
func (t *Tracker) Flush(ctx context.Context) int {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	failed := 0
	for {
		batch := t.nextBatch()
		if len(batch) == 0 {
			return failed
		}
		for _, it := range batch {
			err := it.write(ctx)
			if err != nil {
				failed++
				t.metrics.PersistenceFailed(it.entry.Collection)
				t.log.WithError(err).WithFields(logrus.Fields{
					"outlet_id":  it.entry.OutletID,
					"collection": it.entry.Collection,
					"sync_id":    it.entry.ID,
				}).Error("Write failed: " + it.entry.Description)
			}
			t.settle(it, err)
		}
	}
}

func (t *Tracker) settle(it *item, err error) {
	t.mu.Lock()
	it.entry.Attempts++
	it.entry.UpdatedAt = time.Now()
	switch {
	case err != nil && it.key != "" && t.latest[it.key] != it.entry.ID:
		it.entry.Status = StatusSuperseded
		it.entry.Error = err.Error()
	case err != nil:
		it.entry.Status = StatusFailed
		it.entry.Error = err.Error()
	default:
		it.entry.Status = StatusConfirmed
		it.entry.Error = ""
	}
	notify, e := t.onChange, it.entry
	t.mu.Unlock()

	if notify != nil {
		notify(e)
	}
}

// Retry re-enqueues one failed write
func (t *Tracker) Retry(id string) error {
	t.mu.Lock()
	it, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return ErrEntryNotFound
	}
	if it.entry.Status == StatusSuperseded {
		t.mu.Unlock()
		return ErrSuperseded
	}
	if it.entry.Status != StatusFailed {
		t.mu.Unlock()
		return ErrNotFailed
	}
	it.entry.Status = StatusPending
	it.entry.UpdatedAt = time.Now()
	t.queue.PushBack(it)
	notify, e := t.onChange, it.entry
	t.mu.Unlock()

	if notify != nil {
		notify(e)
	}
	return nil
}

// RetryFailed re-enqueues every failed write of an outlet, or of all outlets
// when outletID is empty, and returns how many were queued
func (t *Tracker) RetryFailed(outletID string) int {
	t.mu.Lock()
	var ids []string
	for _, id := range t.order {
		it := t.entries[id]
		if it.entry.Status == StatusFailed && (outletID == "" || it.entry.OutletID == outletID) {
			ids = append(ids, id)
		}
	}
	t.mu.Unlock()

	n := 0
	for _, id := range ids {
		if t.Retry(id) == nil {
			n++
		}
	}
	return n
}

// Snapshot lists tracked writes of an outlet (all outlets when empty), oldest first
func (t *Tracker) Snapshot(outletID string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		e := t.entries[id].entry
		if outletID == "" || e.OutletID == outletID {
			out = append(out, e)
		}
	}
	return out
}

// Get returns one tracked write
func (t *Tracker) Get(id string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	it, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return it.entry, true
}

// Pending is the number of queued writes
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queue.Len()
}

// Start flushes the queue every FlushInterval until Stop is called
func (t *Tracker) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.Flush(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the background flusher and drains what is left
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if failed := t.Flush(ctx); failed > 0 {
		t.log.WithField("failed", failed).Warn("Writes still failing at shutdown")
	}
}
