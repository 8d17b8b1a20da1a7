// Package uploader delivers sync queue batches to the remote backend.
package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"conductor/internal/domain"
)

// Item is one queue entry as sent over the wire. BusinessID is the remote's
// dedup key.
type Item struct {
	BusinessID string          `json:"business_id"`
	TripID     string          `json:"trip_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Batch groups items of a single record type.
type Batch struct {
	DeviceID   string            `json:"device_id"`
	RecordType domain.RecordType `json:"record_type"`
	Items      []Item            `json:"items"`
}

// Ack is the reply body accepted from the remote.
type Ack struct {
	OK       bool   `json:"ok"`
	Accepted int    `json:"accepted,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Disabled rejects every batch; entries stay PENDING until a transport is configured.
type Disabled struct{}

func (Disabled) Upload(_ context.Context, b Batch) error {
	return domain.UploadError{RecordType: string(b.RecordType), Err: errors.New("sync transport disabled")}
}

// classify turns a transport error into an UploadError, tagging deadline hits as timeouts.
func classify(ctx context.Context, recordType domain.RecordType, status int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = errors.Join(domain.ErrTimeout, err)
	}
	return domain.UploadError{RecordType: string(recordType), Status: status, Err: err}
}
