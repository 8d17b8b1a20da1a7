package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	intdb "conductor/internal/db"
	"conductor/internal/domain"
	"conductor/internal/domain/models"
	"conductor/internal/repositories"
	"conductor/internal/uploader"
	"conductor/internal/utils"
)

// Uploader delivers one batch. A nil error is a confirmed acknowledgment.
type Uploader interface {
	Upload(ctx context.Context, batch uploader.Batch) error
}

type SyncMetrics interface {
	SyncPendingSet(n int)
	BatchObserve(recordType string, entries int, ok bool, d time.Duration)
}

// SyncService owns the outbound queue: idempotent enqueue and batched drain.
type SyncService struct {
	Store     *intdb.Store
	Repo      repositories.SyncQueueRepository
	Uploader  Uploader
	DeviceID  string
	BatchSize int
	Timeout   time.Duration
	Metrics   SyncMetrics

	drainMu sync.Mutex
}

func NewSyncService(store *intdb.Store, up Uploader, deviceID string, batchSize int, timeout time.Duration) *SyncService {
	if batchSize <= 0 {
		batchSize = 100
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SyncService{
		Store:     store,
		Uploader:  up,
		DeviceID:  deviceID,
		BatchSize: batchSize,
		Timeout:   timeout,
	}
}

// BatchResult describes one upload attempt inside a drain.
type BatchResult struct {
	RecordType domain.RecordType `json:"record_type"`
	Entries    int               `json:"entries"`
	Sent       bool              `json:"sent"`
	Error      string            `json:"error,omitempty"`
}

// DrainReport summarizes a drain call.
type DrainReport struct {
	Skipped bool          `json:"skipped"`
	Pending int           `json:"pending"`
	Sent    int           `json:"sent"`
	Failed  int           `json:"failed"`
	Batches []BatchResult `json:"batches"`
}

// SyncStatus is the per record type queue view.
type SyncStatus struct {
	Pending int                `json:"pending"`
	Sent    int                `json:"sent"`
	Counts  []models.SyncCount `json:"counts"`
}

// Enqueue inserts a PENDING entry in its own transaction. Re-enqueueing a
// known business id is a no-op whatever its status.
func (s *SyncService) Enqueue(ctx context.Context, recordType domain.RecordType, businessID, tripID string, payload any) error {
	return s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := enqueueTx(ctx, tx, s.Repo, recordType, businessID, tripID, payload, utils.NowUTC())
		return err
	})
}

// enqueueTx is the form used by ledger writes so the entry commits with its source record.
func enqueueTx(ctx context.Context, q intdb.Querier, repo repositories.SyncQueueRepository, recordType domain.RecordType, businessID, tripID string, payload any, now time.Time) (bool, error) {
	if businessID == "" {
		return false, domain.ValidationError{Field: "business_id", Msg: "required"}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, domain.InternalError{Msg: "encode sync payload", Err: err}
	}
	inserted, err := repo.Insert(ctx, q, models.SyncEntry{
		RecordType: recordType,
		BusinessID: businessID,
		TripID:     tripID,
		Payload:    raw,
		CreatedAt:  now,
	})
	if err != nil {
		return false, domain.InternalError{Msg: "enqueue sync entry", Err: err}
	}
	return inserted, nil
}

// Drain uploads a snapshot of PENDING entries. Each batch is tried once;
// failures leave entries PENDING for the next call. A drain already in
// progress makes this call return with Skipped set.
func (s *SyncService) Drain(ctx context.Context) (DrainReport, error) {
	report := DrainReport{Batches: []BatchResult{}}
	if !s.drainMu.TryLock() {
		report.Skipped = true
		return report, nil
	}
	defer s.drainMu.Unlock()

	pending, err := s.Repo.ListPending(ctx, s.Store.Conn())
	if err != nil {
		return report, domain.InternalError{Msg: "load pending entries", Err: err}
	}
	report.Pending = len(pending)
	if s.Metrics != nil {
		s.Metrics.SyncPendingSet(len(pending))
	}
	if len(pending) == 0 {
		return report, nil
	}

	up := s.Uploader
	if up == nil {
		up = uploader.Disabled{}
	}

	for _, batch := range s.batches(pending) {
		if ctx.Err() != nil {
			break
		}
		res := s.uploadBatch(ctx, up, batch)
		report.Batches = append(report.Batches, res)
		if res.Sent {
			report.Sent += res.Entries
		} else {
			report.Failed += res.Entries
		}
	}

	utils.LogEvent("", "sync", "drain", fmt.Sprintf("pending=%d sent=%d failed=%d", report.Pending, report.Sent, report.Failed))
	return report, nil
}

func (s *SyncService) uploadBatch(ctx context.Context, up Uploader, entries []models.SyncEntry) BatchResult {
	recordType := entries[0].RecordType
	res := BatchResult{RecordType: recordType, Entries: len(entries)}

	b := uploader.Batch{DeviceID: s.DeviceID, RecordType: recordType, Items: make([]uploader.Item, 0, len(entries))}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		b.Items = append(b.Items, uploader.Item{
			BusinessID: e.BusinessID,
			TripID:     e.TripID,
			CreatedAt:  e.CreatedAt,
			Payload:    e.Payload,
		})
		ids = append(ids, e.ID)
	}

	upCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	start := time.Now()
	err := up.Upload(upCtx, b)
	cancel()
	if err != nil && errors.Is(upCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		err = domain.UploadError{RecordType: string(recordType), Err: errors.Join(domain.ErrTimeout, err)}
	}
	if s.Metrics != nil {
		s.Metrics.BatchObserve(string(recordType), len(entries), err == nil, time.Since(start))
	}

	// Bookkeeping must not inherit a cancelled drain context.
	bookCtx, bookCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer bookCancel()

	if err != nil {
		res.Error = err.Error()
		utils.Warn("sync batch failed", "record_type", string(recordType), "entries", len(entries), "error", err)
		if ferr := s.Store.WithTx(bookCtx, func(tx *sql.Tx) error {
			return s.Repo.RecordFailure(bookCtx, tx, ids, truncate(err.Error(), 500))
		}); ferr != nil {
			utils.Error("record sync failure", "error", ferr)
		}
		return res
	}

	if merr := s.Store.WithTx(bookCtx, func(tx *sql.Tx) error {
		_, err := s.Repo.MarkSent(bookCtx, tx, ids, utils.NowUTC())
		return err
	}); merr != nil {
		// Acknowledged but not marked: the next drain re-sends and the remote dedups.
		res.Error = merr.Error()
		utils.Error("mark sync entries sent", "error", merr)
		return res
	}
	res.Sent = true
	return res
}

// batches groups entries by record type in order of first appearance and
// splits each group into BatchSize chunks, preserving creation order.
func (s *SyncService) batches(entries []models.SyncEntry) [][]models.SyncEntry {
	size := s.BatchSize
	if size <= 0 {
		size = 100
	}
	order := []domain.RecordType{}
	groups := map[domain.RecordType][]models.SyncEntry{}
	for _, e := range entries {
		if _, ok := groups[e.RecordType]; !ok {
			order = append(order, e.RecordType)
		}
		groups[e.RecordType] = append(groups[e.RecordType], e)
	}

	out := [][]models.SyncEntry{}
	for _, rt := range order {
		g := groups[rt]
		for len(g) > 0 {
			n := min(size, len(g))
			out = append(out, g[:n])
			g = g[n:]
		}
	}
	return out
}

// PurgeSent deletes SENT entries acknowledged more than olderThan ago; zero purges all.
func (s *SyncService) PurgeSent(ctx context.Context, olderThan time.Duration) (int64, error) {
	var cutoff time.Time
	if olderThan > 0 {
		cutoff = utils.NowUTC().Add(-olderThan)
	}
	var n int64
	err := s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = s.Repo.DeleteSent(ctx, tx, cutoff)
		return err
	})
	if err != nil {
		return 0, domain.InternalError{Msg: "purge sent entries", Err: err}
	}
	if n > 0 {
		utils.LogEvent("", "sync", "purge", fmt.Sprintf("deleted=%d", n))
	}
	return n, nil
}

func (s *SyncService) Status(ctx context.Context) (SyncStatus, error) {
	counts, err := s.Repo.Counts(ctx, s.Store.Conn())
	if err != nil {
		return SyncStatus{}, domain.InternalError{Msg: "count sync entries", Err: err}
	}
	st := SyncStatus{Counts: counts}
	for _, c := range counts {
		switch c.Status {
		case domain.SyncPending:
			st.Pending += c.Count
		case domain.SyncSent:
			st.Sent += c.Count
		}
	}
	return st, nil
}

// Entry returns the queue entry for a business id.
func (s *SyncService) Entry(ctx context.Context, businessID string) (models.SyncEntry, error) {
	e, err := s.Repo.GetByBusinessID(ctx, s.Store.Conn(), businessID)
	if errors.Is(err, sql.ErrNoRows) {
		return e, domain.NotFoundError{Resource: "sync entry"}
	}
	if err != nil {
		return e, domain.InternalError{Err: err}
	}
	return e, nil
}

// Run drains every interval and purges SENT entries older than purgeAfter
// until ctx is done.
func (s *SyncService) Run(ctx context.Context, interval, purgeAfter time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Drain(ctx); err != nil {
			utils.Error("sync drain", "error", err)
		}
		if purgeAfter > 0 {
			if _, err := s.PurgeSent(ctx, purgeAfter); err != nil {
				utils.Error("sync purge", "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
