package store

import (
	"context"
	"time"

	"trivia-api/internal/models"
)

type docKind string

const (
	kindBalance        docKind = "users"
	kindDeviceClaim    docKind = "claimed_initial_tokens"
	kindProcessedEvent docKind = "processed_events"
)

type docKey struct {
	kind docKind
	id   string
}

// readState is what a transaction observed for one document.
type readState struct {
	found   bool
	version int64
}

type pendingWrite struct {
	key    docKey
	create bool
	prev   int64 // version observed by the read, meaningful for updates only
	doc    interface{}
}

// session is one attempt of a transaction against a backend.
type session interface {
	// get loads the document into dst and reports whether it exists.
	get(ctx context.Context, key docKey, dst interface{}) (bool, error)
	// commit applies writes when every document in reads is unchanged,
	// ErrConflict otherwise.
	commit(ctx context.Context, reads map[docKey]readState, writes []pendingWrite) error
}

// versionOf returns the concurrency token of a document. Claims and
// processed events are immutable so they carry none.
func versionOf(doc interface{}) int64 {
	if b, ok := doc.(*models.UserBalance); ok {
		return b.Version
	}
	return 0
}

func stateOf(found bool, doc interface{}) readState {
	if !found {
		return readState{}
	}
	return readState{found: true, version: versionOf(doc)}
}

// txn tracks the read set and buffered writes of one attempt.
type txn struct {
	sess    session
	reads   map[docKey]readState
	writes  []pendingWrite
	written map[docKey]int
}

func newTxn(sess session) *txn {
	return &txn{
		sess:    sess,
		reads:   make(map[docKey]readState),
		written: make(map[docKey]int),
	}
}

func (t *txn) read(ctx context.Context, key docKey, dst interface{}) (bool, error) {
	if len(t.writes) > 0 {
		return false, ErrReadAfterWrite
	}
	found, err := t.sess.get(ctx, key, dst)
	if err != nil {
		return false, err
	}
	// The first observation is the one validated at commit
	if _, seen := t.reads[key]; !seen {
		t.reads[key] = stateOf(found, dst)
	}
	return found, nil
}

func (t *txn) write(key docKey, doc interface{}, createOnly bool) error {
	state, ok := t.reads[key]
	if !ok {
		return ErrUnreadWrite
	}
	if createOnly && state.found {
		return ErrAlreadyExists
	}
	if i, ok := t.written[key]; ok {
		t.writes[i].doc = doc
		return nil
	}
	t.written[key] = len(t.writes)
	t.writes = append(t.writes, pendingWrite{
		key:    key,
		create: !state.found,
		prev:   state.version,
		doc:    doc,
	})
	return nil
}

// prepareWrites stamps versions and timestamps on the buffered documents.
func (t *txn) prepareWrites(now time.Time) []pendingWrite {
	for _, w := range t.writes {
		if b, ok := w.doc.(*models.UserBalance); ok {
			b.Version = w.prev + 1
			if b.CreatedAt.IsZero() {
				b.CreatedAt = now
			}
			b.UpdatedAt = now
		}
	}
	return t.writes
}

func (t *txn) GetBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	var balance models.UserBalance
	found, err := t.read(ctx, docKey{kindBalance, userID}, &balance)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &balance, nil
}

func (t *txn) PutBalance(balance *models.UserBalance) error {
	doc := *balance
	return t.write(docKey{kindBalance, balance.UserID}, &doc, false)
}

func (t *txn) GetDeviceClaim(ctx context.Context, deviceID string) (*models.DeviceClaim, error) {
	var claim models.DeviceClaim
	found, err := t.read(ctx, docKey{kindDeviceClaim, deviceID}, &claim)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &claim, nil
}

func (t *txn) CreateDeviceClaim(claim *models.DeviceClaim) error {
	doc := *claim
	return t.write(docKey{kindDeviceClaim, claim.DeviceID}, &doc, true)
}

func (t *txn) GetProcessedEvent(ctx context.Context, eventID string) (*models.ProcessedEvent, error) {
	var event models.ProcessedEvent
	found, err := t.read(ctx, docKey{kindProcessedEvent, eventID}, &event)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &event, nil
}

func (t *txn) CreateProcessedEvent(event *models.ProcessedEvent) error {
	doc := *event
	return t.write(docKey{kindProcessedEvent, event.EventID}, &doc, true)
}

// newDoc returns an empty document of the given kind.
func newDoc(kind docKind) interface{} {
	switch kind {
	case kindDeviceClaim:
		return &models.DeviceClaim{}
	case kindProcessedEvent:
		return &models.ProcessedEvent{}
	default:
		return &models.UserBalance{}
	}
}
