package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"conductor/internal/domain"
)

func sampleBatch() Batch {
	return Batch{
		DeviceID:   "dev-1",
		RecordType: domain.RecordTicket,
		Items: []Item{
			{BusinessID: "R1-V1-20250101T080000#1", TripID: "R1-V1-20250101T080000", Payload: json.RawMessage(`{"seq":1}`)},
		},
	}
}

func TestHTTPUploaderPostsBatch(t *testing.T) {
	var got Batch
	var path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL+"/", "secret", time.Second)
	if err := u.Upload(context.Background(), sampleBatch()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if path != "/ticket" {
		t.Fatalf("path = %q, want /ticket", path)
	}
	if auth != "Bearer secret" {
		t.Fatalf("authorization = %q", auth)
	}
	if len(got.Items) != 1 || got.Items[0].BusinessID != "R1-V1-20250101T080000#1" {
		t.Fatalf("business id not transmitted: %+v", got.Items)
	}
}

func TestHTTPUploaderNon2xxIsUploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHTTPUploader(srv.URL, "", time.Second).Upload(context.Background(), sampleBatch())
	if !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	var ue domain.UploadError
	if !errors.As(err, &ue) || ue.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 in error, got %v", err)
	}
	if errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("status failure must not be reported as timeout")
	}
}

func TestHTTPUploaderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := NewHTTPUploader(srv.URL, "", 5*time.Second).Upload(ctx, sampleBatch())
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("timeout must also be an upload failure, got %v", err)
	}
}

func TestDisabledUploaderAlwaysFails(t *testing.T) {
	if err := (Disabled{}).Upload(context.Background(), sampleBatch()); !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
}
