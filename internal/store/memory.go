package store

import (
	"context"
	"encoding/json"
	"sync"

	"trivia-api/internal/models"
)

type memoryDoc struct {
	data    []byte
	version int64
}

// memoryBackend keeps documents in process. Documents are held encoded so
// callers never share memory with the store.
type memoryBackend struct {
	mu   sync.Mutex
	docs map[docKey]memoryDoc
}

// NewMemoryStore creates an in-process store. Data is lost on restart.
func NewMemoryStore(opts Options) *Store {
	return newStore("memory", &memoryBackend{docs: make(map[docKey]memoryDoc)}, opts)
}

func (b *memoryBackend) attempt(ctx context.Context, fn func(session) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&memorySession{backend: b})
}

func (b *memoryBackend) load(key docKey, dst interface{}) (bool, error) {
	b.mu.Lock()
	doc, ok := b.docs[key]
	b.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(doc.data, dst)
}

func (b *memoryBackend) getBalance(_ context.Context, userID string) (*models.UserBalance, error) {
	var balance models.UserBalance
	found, err := b.load(docKey{kindBalance, userID}, &balance)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &balance, nil
}

func (b *memoryBackend) deleteBalances(_ context.Context, userIDs []string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var deleted int64
	for _, id := range userIDs {
		key := docKey{kindBalance, id}
		if _, ok := b.docs[key]; ok {
			delete(b.docs, key)
			deleted++
		}
	}
	return deleted, nil
}

func (b *memoryBackend) close() error {
	return nil
}

type memorySession struct {
	backend *memoryBackend
}

func (s *memorySession) get(_ context.Context, key docKey, dst interface{}) (bool, error) {
	return s.backend.load(key, dst)
}

func (s *memorySession) commit(_ context.Context, reads map[docKey]readState, writes []pendingWrite) error {
	encoded := make([][]byte, len(writes))
	for i, w := range writes {
		data, err := json.Marshal(w.doc)
		if err != nil {
			return err
		}
		encoded[i] = data
	}

	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, observed := range reads {
		current, ok := b.docs[key]
		if ok != observed.found || (ok && current.version != observed.version) {
			return ErrConflict
		}
	}
	for i, w := range writes {
		b.docs[w.key] = memoryDoc{data: encoded[i], version: versionOf(w.doc)}
	}
	return nil
}
