package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"conductor/internal/utils"

	"github.com/nats-io/nats.go"
)

type ConnMetrics interface {
	NATSSetConnected(connected bool)
}

// NATSUploader sends each batch as a request on <prefix>.<record-type> and
// waits for an Ack reply.
type NATSUploader struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSUploader returns a usable uploader even when the server is not
// reachable yet; uploads fail with ErrUploadFailed until a connection is made.
func NewNATSUploader(url, prefix, deviceID string, m ConnMetrics) (*NATSUploader, error) {
	nc, err := nats.Connect(url,
		nats.Name("conductor-"+utils.SafeToken(deviceID)),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			utils.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			utils.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			utils.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	// With RetryOnFailedConnect the first dial may still be pending; the
	// reconnect handler flips the gauge once it succeeds.
	if m != nil {
		m.NATSSetConnected(nc.IsConnected())
	}
	return &NATSUploader{nc: nc, prefix: strings.TrimSuffix(prefix, ".")}, nil
}

func (u *NATSUploader) Close() {
	if u.nc != nil {
		_ = u.nc.Drain()
		u.nc.Close()
	}
}

func (u *NATSUploader) Subject(recordType string) string {
	return fmt.Sprintf("%s.%s", u.prefix, utils.SafeToken(recordType))
}

// Upload blocks until a reply arrives or ctx expires. The caller must bound ctx.
func (u *NATSUploader) Upload(ctx context.Context, b Batch) error {
	body, err := json.Marshal(b)
	if err != nil {
		return classify(ctx, b.RecordType, 0, fmt.Errorf("failed to encode batch: %w", err))
	}

	if !u.nc.IsConnected() {
		return classify(ctx, b.RecordType, 0, fmt.Errorf("nats not connected: %s", u.nc.Status()))
	}

	msg, err := u.nc.RequestWithContext(ctx, u.Subject(string(b.RecordType)), body)
	if err != nil {
		return classify(ctx, b.RecordType, 0, err)
	}

	var ack Ack
	if err := json.Unmarshal(msg.Data, &ack); err != nil {
		return classify(ctx, b.RecordType, 0, fmt.Errorf("invalid ack: %w", err))
	}
	if !ack.OK {
		reason := ack.Error
		if reason == "" {
			reason = "remote rejected batch"
		}
		return classify(ctx, b.RecordType, 0, fmt.Errorf("%s", reason))
	}
	return nil
}
