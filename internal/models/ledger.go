package models

import (
	"time"
)

// UserBalance is a user's token wallet. One row per user id.
type UserBalance struct {
	UserID                  string    `json:"user_id" gorm:"primaryKey;size:128"`
	Tokens                  int64     `json:"tokens" gorm:"not null;default:0"`
	HasClaimedInitialTokens bool      `json:"has_claimed_initial_tokens" gorm:"not null;default:false"`
	Version                 int64     `json:"version" gorm:"not null;default:0"` // bumped on every committed write
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// TableName 指定表名
func (UserBalance) TableName() string {
	return "users"
}

// DeviceClaim proves that a device already received its initial grant.
// Rows are written once and never updated or deleted.
type DeviceClaim struct {
	DeviceID  string    `json:"device_id" gorm:"primaryKey;size:255"`
	UserID    string    `json:"user_id" gorm:"not null;size:128;index"`
	ClaimedAt time.Time `json:"claimed_at" gorm:"not null"`
}

func (DeviceClaim) TableName() string {
	return "claimed_initial_tokens"
}

// ProcessedEvent marks a purchase notification as applied to the ledger.
type ProcessedEvent struct {
	EventID        string     `json:"event_id" gorm:"primaryKey;size:255"`
	EventType      string     `json:"event_type" gorm:"size:64"`
	ProductID      string     `json:"product_id" gorm:"size:128"`
	UserID         string     `json:"user_id" gorm:"size:128;index"`
	TokensCredited int64      `json:"tokens_credited"`
	PurchasedAt    *time.Time `json:"purchased_at,omitempty"`
	ProcessedAt    time.Time  `json:"processed_at" gorm:"not null"`
}

func (ProcessedEvent) TableName() string {
	return "processed_events"
}
