package models

import (
	"encoding/json"
	"time"

	"conductor/internal/domain"
)

// SyncEntry is one outbox row. Payload is a copy, not a live link.
type SyncEntry struct {
	ID         int64             `json:"id"`
	RecordType domain.RecordType `json:"record_type"`
	BusinessID string            `json:"business_id"`
	TripID     string            `json:"trip_id,omitempty"`
	Payload    json.RawMessage   `json:"payload"`
	Status     domain.Status     `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
	Attempts   int               `json:"attempts"`
	LastError  string            `json:"last_error,omitempty"`
}

// SyncCount is a per type/status tally of queue entries.
type SyncCount struct {
	RecordType domain.RecordType `json:"record_type"`
	Status     domain.Status     `json:"status"`
	Count      int               `json:"count"`
}
