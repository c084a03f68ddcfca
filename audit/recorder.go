// Package audit persists the escrow module's event stream as an append-only
// record. The recorder implements core/events.Emitter so the engine stays
// unaware of the storage backend; sequence numbers follow the ledger's call
// admission order because events are emitted synchronously inside each call.
package audit

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vivianchibueze694-alt/bridegeescrow/core/events"
	"github.com/vivianchibueze694-alt/bridegeescrow/storage"
)

var keyPrefix = []byte("audit/")

// Record is one persisted audit entry.
type Record struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Recorder appends events to a key-value store with a monotone sequence.
type Recorder struct {
	mu      sync.Mutex
	db      storage.Database
	nextSeq uint64
	onError func(error)
}

// NewRecorder opens a recorder over the supplied database, resuming the
// sequence counter from the last persisted record.
func NewRecorder(db storage.Database, onError func(error)) (*Recorder, error) {
	r := &Recorder{db: db, onError: onError}
	var last uint64
	err := db.IteratePrefix(keyPrefix, func(key, value []byte) bool {
		var rec Record
		if json.Unmarshal(value, &rec) == nil && rec.Sequence > last {
			last = rec.Sequence
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	r.nextSeq = last + 1
	return r, nil
}

// Emit implements events.Emitter. Persistence failures are reported through
// the error callback; the Emitter contract has no error return.
func (r *Recorder) Emit(evt events.Event) {
	if r == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := Record{Sequence: r.nextSeq, Type: payload.Type, Attributes: payload.Attributes}
	encoded, err := json.Marshal(rec)
	if err != nil {
		r.reportError(fmt.Errorf("encode audit record: %w", err))
		return
	}
	if err := r.db.Put(key(rec.Sequence), encoded); err != nil {
		r.reportError(fmt.Errorf("persist audit record %d: %w", rec.Sequence, err))
		return
	}
	r.nextSeq++
}

// List replays up to limit records in sequence order. A limit of zero returns
// everything.
func (r *Recorder) List(limit int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var records []Record
	err := r.db.IteratePrefix(keyPrefix, func(_, value []byte) bool {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			return true
		}
		records = append(records, rec)
		return limit <= 0 || len(records) < limit
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Recorder) reportError(err error) {
	if r.onError != nil {
		r.onError(err)
	}
}

// Keys are zero-padded so lexicographic iteration matches sequence order.
func key(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}
