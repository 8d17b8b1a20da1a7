package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPUploader POSTs each batch as JSON to <endpoint>/<record-type>. Any 2xx
// response is an acknowledgment of the whole batch.
type HTTPUploader struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewHTTPUploader(endpoint, token string, timeout time.Duration) *HTTPUploader {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPUploader{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (u *HTTPUploader) Upload(ctx context.Context, b Batch) error {
	if u.endpoint == "" {
		return classify(ctx, b.RecordType, 0, fmt.Errorf("sync endpoint not configured"))
	}
	body, err := json.Marshal(b)
	if err != nil {
		return classify(ctx, b.RecordType, 0, fmt.Errorf("failed to encode batch: %w", err))
	}

	url := u.endpoint + "/" + string(b.RecordType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return classify(ctx, b.RecordType, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return classify(ctx, b.RecordType, 0, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(ctx, b.RecordType, resp.StatusCode, fmt.Errorf("remote returned status %d", resp.StatusCode))
	}
	return nil
}
