package uploader

import (
	"context"
	"errors"
	"testing"
	"time"

	"conductor/internal/domain"
)

func TestNATSSubjectPerRecordType(t *testing.T) {
	u := &NATSUploader{prefix: "conductor.sync"}
	if got := u.Subject("ticket-cancellation"); got != "conductor.sync.ticket-cancellation" {
		t.Fatalf("subject = %q", got)
	}
	if got := u.Subject("a.b"); got != "conductor.sync.a_b" {
		t.Fatalf("record type must not add subject tokens: %q", got)
	}
}

type connFlag struct{ connected bool }

func (c *connFlag) NATSSetConnected(v bool) { c.connected = v }

func TestNATSUploaderStartsOffline(t *testing.T) {
	m := &connFlag{}
	u, err := NewNATSUploader("nats://127.0.0.1:1", "conductor.sync", "dev", m)
	if err != nil {
		t.Fatalf("an unreachable server must not prevent construction: %v", err)
	}
	if u == nil {
		t.Fatalf("expected an uploader")
	}
	defer u.Close()

	if m.connected {
		t.Fatalf("gauge must not report a connection that never happened")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err = u.Upload(ctx, Batch{DeviceID: "dev", RecordType: domain.RecordTicket})
	if !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed while offline, got %v", err)
	}
}
