package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"conductor/internal/domain"
	"conductor/internal/domain/models"
)

func TestEnqueueIsIdempotentByBusinessID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := env.sync.Enqueue(ctx, domain.RecordExpense, "expense:x", "", map[string]int{"amount": 10}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	st, err := env.sync.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Pending != 1 {
		t.Fatalf("pending = %d, want 1", st.Pending)
	}

	if _, err := env.sync.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	// A SENT entry still blocks a re-enqueue of the same id.
	if err := env.sync.Enqueue(ctx, domain.RecordExpense, "expense:x", "", map[string]int{"amount": 10}); err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	st, _ = env.sync.Status(ctx)
	if st.Pending != 0 || st.Sent != 1 {
		t.Fatalf("pending=%d sent=%d, want 0/1", st.Pending, st.Sent)
	}

	if err := env.sync.Enqueue(ctx, domain.RecordExpense, "", "", nil); !domain.IsValidation(err) {
		t.Fatalf("empty business id must be rejected, got %v", err)
	}
}

func TestDrainTwiceUploadsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trip := env.openTrip(t, "R", "BUS")
	env.issue(t, trip.ID, "harare", "causeway", domain.FareAdult)
	env.issue(t, trip.ID, "harare", "belvedere", domain.FareAdult)

	first, err := env.sync.Drain(ctx)
	if err != nil {
		t.Fatalf("first drain: %v", err)
	}
	if first.Sent != 3 {
		t.Fatalf("first drain sent %d, want 3", first.Sent)
	}
	second, err := env.sync.Drain(ctx)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if second.Pending != 0 || len(second.Batches) != 0 {
		t.Fatalf("second drain found work: %+v", second)
	}

	got := env.upload.uploaded()
	want := []string{trip.ID + ":open", trip.ID + "#1", trip.ID + "#2"}
	if len(got) != len(want) {
		t.Fatalf("uploaded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("uploaded %v, want %v", got, want)
		}
	}
}

func TestDrainGroupsByTypeAndBatchSize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.sync.BatchSize = 2
	trip := env.openTrip(t, "R", "BUS")
	for i := 0; i < 3; i++ {
		env.issue(t, trip.ID, "harare", "causeway", domain.FareAdult)
	}
	if _, err := env.ledger.RecordExpense(ctx, trip.ID, models.ExpenseInput{Category: "fuel", Amount: 10}); err != nil {
		t.Fatalf("expense: %v", err)
	}

	report, err := env.sync.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	wantTypes := []domain.RecordType{domain.RecordTripEvent, domain.RecordTicket, domain.RecordTicket, domain.RecordExpense}
	wantSizes := []int{1, 2, 1, 1}
	if len(report.Batches) != len(wantTypes) {
		t.Fatalf("batches = %+v", report.Batches)
	}
	for i, b := range report.Batches {
		if b.RecordType != wantTypes[i] || b.Entries != wantSizes[i] || !b.Sent {
			t.Fatalf("batch %d = %+v, want %s x%d", i, b, wantTypes[i], wantSizes[i])
		}
	}
	for _, b := range env.upload.batches {
		if b.DeviceID != "dev-test" {
			t.Fatalf("device id missing from batch")
		}
	}
}

func TestDrainFailureLeavesEntriesPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trip := env.openTrip(t, "R", "BUS")
	env.issue(t, trip.ID, "harare", "causeway", domain.FareAdult)

	env.upload.setFail(errors.New("connection refused"))
	report, err := env.sync.Drain(ctx)
	if err != nil {
		t.Fatalf("drain must not surface upload errors: %v", err)
	}
	if report.Sent != 0 || report.Failed != 2 {
		t.Fatalf("unexpected report %+v", report)
	}

	entry, err := env.sync.Entry(ctx, trip.ID+"#1")
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if entry.Status != domain.SyncPending || entry.Attempts != 1 || entry.LastError == "" {
		t.Fatalf("failed entry state %+v", entry)
	}

	_, err = env.ledger.CloseTrip(ctx, trip.ID)
	mustErrIs(t, err, domain.ErrPendingWork)

	env.upload.setFail(nil)
	report, _ = env.sync.Drain(ctx)
	if report.Sent != 2 {
		t.Fatalf("retry sent %d, want 2", report.Sent)
	}
	entry, _ = env.sync.Entry(ctx, trip.ID+"#1")
	if entry.Status != domain.SyncSent || entry.SentAt == nil {
		t.Fatalf("entry not sent after retry: %+v", entry)
	}
}

func TestDrainTimeoutLeavesEntriesPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.sync.Timeout = 50 * time.Millisecond
	env.upload.block = make(chan struct{})
	defer close(env.upload.block)

	if err := env.sync.Enqueue(ctx, domain.RecordTripEvent, "slow-event", "", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	report, err := env.sync.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(report.Batches) != 1 || report.Batches[0].Sent {
		t.Fatalf("timed out batch reported as sent: %+v", report)
	}
	entry, _ := env.sync.Entry(ctx, "slow-event")
	if entry.Status != domain.SyncPending || entry.Attempts != 1 {
		t.Fatalf("timed out entry state %+v", entry)
	}
}

func TestConcurrentDrainIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.upload.block = make(chan struct{})
	env.upload.entered = make(chan struct{}, 1)

	if err := env.sync.Enqueue(ctx, domain.RecordTripEvent, "slow-event", "", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan DrainReport, 1)
	go func() {
		r, _ := env.sync.Drain(ctx)
		done <- r
	}()
	<-env.upload.entered

	second, err := env.sync.Drain(ctx)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if !second.Skipped {
		t.Fatalf("second drain should be skipped while the first is running")
	}

	close(env.upload.block)
	first := <-done
	if first.Sent != 1 {
		t.Fatalf("first drain sent %d, want 1", first.Sent)
	}
}

func TestPurgeSent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.sync.Enqueue(ctx, domain.RecordTripEvent, "a", "", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := env.sync.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if err := env.sync.Enqueue(ctx, domain.RecordTripEvent, "b", "", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	n, err := env.sync.PurgeSent(ctx, time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("fresh SENT entries must survive an age-bounded purge: n=%d err=%v", n, err)
	}
	n, err = env.sync.PurgeSent(ctx, 0)
	if err != nil || n != 1 {
		t.Fatalf("purge all: n=%d err=%v", n, err)
	}
	st, _ := env.sync.Status(ctx)
	if st.Pending != 1 || st.Sent != 0 {
		t.Fatalf("purge touched pending entries: %+v", st)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	env := newTestEnv(t)
	if err := env.sync.Enqueue(context.Background(), domain.RecordTripEvent, "tick", "", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.sync.Run(ctx, 10*time.Millisecond, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(env.upload.uploaded()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("worker never drained")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
}

func TestTruncateKeepsWholeRunes(t *testing.T) {
	msg := strings.Repeat("é", 300) // two bytes each
	got := truncate(msg, 499)
	if !utf8.ValidString(got) || len(got) != 498 {
		t.Fatalf("truncate cut a rune: len=%d valid=%v", len(got), utf8.ValidString(got))
	}
	if got := truncate("short", 500); got != "short" {
		t.Fatalf("short strings pass through, got %q", got)
	}
}
