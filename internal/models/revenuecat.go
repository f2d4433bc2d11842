package models

import "time"

// RevenueCatWebhook represents the body of a RevenueCat webhook delivery.
// Only the fields the wallet needs are decoded.
type RevenueCatWebhook struct {
	Event      *RevenueCatEvent `json:"event"`
	APIVersion string           `json:"api_version"`
}

// RevenueCatEvent represents a single purchase notification
type RevenueCatEvent struct {
	ID            string `json:"id"`              // Unique per notification, stable across retries
	Type          string `json:"type"`            // e.g. "INITIAL_PURCHASE", "NON_RENEWING_PURCHASE"
	AppUserID     string `json:"app_user_id"`     // Wallet owner
	ProductID     string `json:"product_id"`      // Store product identifier
	PurchasedAtMS int64  `json:"purchased_at_ms"` // Milliseconds since epoch, 0 when absent
}

// PurchasedAt converts purchased_at_ms, nil when the sender omitted it
func (e *RevenueCatEvent) PurchasedAt() *time.Time {
	if e.PurchasedAtMS <= 0 {
		return nil
	}
	t := time.UnixMilli(e.PurchasedAtMS).UTC()
	return &t
}
