package store

import (
	"context"
	"errors"
	"fmt"

	"trivia-api/internal/models"

	"gorm.io/gorm"
)

// primary key column per document kind
var gormKeyColumns = map[docKind]string{
	kindBalance:        "user_id",
	kindDeviceClaim:    "device_id",
	kindProcessedEvent: "event_id",
}

// gormBackend runs each attempt in one SQL transaction. Balance updates are
// compare-and-swap on the version column and inserts rely on the primary key,
// so the database itself rejects lost updates. The *gorm.DB must be opened
// with TranslateError so duplicate keys surface as gorm.ErrDuplicatedKey.
type gormBackend struct {
	db *gorm.DB
}

// NewGormStore creates a store on an opened and migrated database.
func NewGormStore(db *gorm.DB, opts Options) *Store {
	return newStore("sql", &gormBackend{db: db}, opts)
}

func (b *gormBackend) attempt(ctx context.Context, fn func(session) error) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormSession{tx: tx})
	})
}

func (b *gormBackend) getBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	var balance models.UserBalance
	err := b.db.WithContext(ctx).Take(&balance, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (b *gormBackend) deleteBalances(ctx context.Context, userIDs []string) (int64, error) {
	result := b.db.WithContext(ctx).Where("user_id IN ?", userIDs).Delete(&models.UserBalance{})
	return result.RowsAffected, result.Error
}

func (b *gormBackend) close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormSession struct {
	tx *gorm.DB
}

func (s *gormSession) get(_ context.Context, key docKey, dst interface{}) (bool, error) {
	column, ok := gormKeyColumns[key.kind]
	if !ok {
		return false, fmt.Errorf("unknown document kind %q", key.kind)
	}
	err := s.tx.Take(dst, column+" = ?", key.id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *gormSession) commit(ctx context.Context, reads map[docKey]readState, writes []pendingWrite) error {
	written := make(map[docKey]bool, len(writes))

	for _, w := range writes {
		written[w.key] = true

		if w.create {
			if err := s.tx.Create(w.doc).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrConflict
				}
				return err
			}
			continue
		}

		balance, ok := w.doc.(*models.UserBalance)
		if !ok {
			return fmt.Errorf("document kind %q is immutable", w.key.kind)
		}
		result := s.tx.Model(&models.UserBalance{}).
			Where("user_id = ? AND version = ?", balance.UserID, w.prev).
			Updates(map[string]interface{}{
				"tokens":                     balance.Tokens,
				"has_claimed_initial_tokens": balance.HasClaimedInitialTokens,
				"version":                    balance.Version,
				"updated_at":                 balance.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}
	}

	// Documents only read must still be as observed
	for key, observed := range reads {
		if written[key] {
			continue
		}
		current := newDoc(key.kind)
		found, err := s.get(ctx, key, current)
		if err != nil {
			return err
		}
		if stateOf(found, current) != observed {
			return ErrConflict
		}
	}
	return nil
}
