// Package store keeps the token ledger documents (balances, device claims and
// processed purchase events) behind optimistic read-modify-write transactions.
//
// A transaction reads documents, buffers writes and commits only when none of
// the documents it read changed in the meantime. Conflicting attempts are
// retried from scratch, so the callback must be free of side effects.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"trivia-api/internal/models"
	"trivia-api/pkg/logging"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: document not found")
	// ErrAlreadyExists is returned when creating a document that was read as present.
	ErrAlreadyExists = errors.New("store: document already exists")
	// ErrConflict is returned when a document read by the transaction changed before commit.
	ErrConflict = errors.New("store: transaction conflict")
	// ErrReadAfterWrite is returned when a transaction reads after buffering a write.
	ErrReadAfterWrite = errors.New("store: read after write in transaction")
	// ErrUnreadWrite is returned when a transaction writes a document it never read.
	ErrUnreadWrite = errors.New("store: write to a document not read in transaction")
)

const (
	defaultMaxAttempts  = 5
	defaultRetryBackoff = 10 * time.Millisecond
)

// Options tunes transaction retries.
type Options struct {
	MaxAttempts  int           // attempts per transaction, 5 when zero
	RetryBackoff time.Duration // base delay between attempts, 10ms when zero
}

// Tx is the view of the ledger available inside a transaction.
// Reads return ErrNotFound for absent documents. Writes are applied at commit.
type Tx interface {
	GetBalance(ctx context.Context, userID string) (*models.UserBalance, error)
	PutBalance(balance *models.UserBalance) error

	GetDeviceClaim(ctx context.Context, deviceID string) (*models.DeviceClaim, error)
	CreateDeviceClaim(claim *models.DeviceClaim) error

	GetProcessedEvent(ctx context.Context, eventID string) (*models.ProcessedEvent, error)
	CreateProcessedEvent(event *models.ProcessedEvent) error
}

// TxFunc is the body of a transaction. It may run more than once.
type TxFunc func(ctx context.Context, tx Tx) error

// backend is implemented by each storage engine.
type backend interface {
	// attempt runs fn against one isolated session. A failed validation
	// surfaces as ErrConflict.
	attempt(ctx context.Context, fn func(session) error) error
	getBalance(ctx context.Context, userID string) (*models.UserBalance, error)
	deleteBalances(ctx context.Context, userIDs []string) (int64, error)
	close() error
}

// Store is the ledger document store.
type Store struct {
	name    string
	backend backend
	opts    Options
}

func newStore(name string, b backend, opts Options) *Store {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	return &Store{name: name, backend: b, opts: opts}
}

// Name reports the backend in use.
func (s *Store) Name() string {
	return s.name
}

// abortError carries an error returned by the transaction body so it is
// never mistaken for a commit conflict.
type abortError struct {
	err error
}

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

// RunTransaction runs fn atomically. Errors returned by fn abort the
// transaction without writes and are returned unchanged. Commit conflicts are
// retried up to Options.MaxAttempts times.
func (s *Store) RunTransaction(ctx context.Context, fn TxFunc) error {
	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		err := s.backend.attempt(ctx, func(sess session) error {
			t := newTxn(sess)
			if err := fn(ctx, t); err != nil {
				return &abortError{err: err}
			}
			return sess.commit(ctx, t.reads, t.prepareWrites(time.Now().UTC()))
		})
		if err == nil {
			return nil
		}

		var aborted *abortError
		if errors.As(err, &aborted) {
			return aborted.err
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}

		lastErr = err
		logging.Debug().Str("backend", s.name).Int("attempt", attempt).Msg("Ledger transaction conflict, retrying")
		if attempt == s.opts.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff(attempt)):
		}
	}

	logging.Warnf("Ledger transaction gave up after %d attempts on %s backend", s.opts.MaxAttempts, s.name)
	return fmt.Errorf("giving up after %d attempts: %w", s.opts.MaxAttempts, lastErr)
}

func (s *Store) backoff(attempt int) time.Duration {
	base := s.opts.RetryBackoff * time.Duration(attempt)
	return base + time.Duration(rand.Int64N(int64(s.opts.RetryBackoff)))
}

// GetBalance reads a balance outside any transaction.
func (s *Store) GetBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	return s.backend.getBalance(ctx, userID)
}

// DeleteBalances removes the balances of the given users in one batch and
// reports how many existed. Callers chunk large id lists.
func (s *Store) DeleteBalances(ctx context.Context, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	return s.backend.deleteBalances(ctx, userIDs)
}

// Close releases the backend connection.
func (s *Store) Close() error {
	return s.backend.close()
}
