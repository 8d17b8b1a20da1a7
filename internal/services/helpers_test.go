package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	intdb "conductor/internal/db"
	"conductor/internal/domain"
	"conductor/internal/domain/models"
	"conductor/internal/uploader"
)

var (
	stopHarare    = models.Stop{ID: "harare", Name: "Harare", Lat: -17.8292, Lon: 31.0522}
	stopCauseway  = models.Stop{ID: "causeway", Name: "Causeway", Lat: -17.8200, Lon: 31.0600}
	stopBelvedere = models.Stop{ID: "belvedere", Name: "Belvedere", Lat: -17.8300, Lon: 31.0200}
)

func referenceFixture() models.ReferenceData {
	return models.ReferenceData{
		Stops: []models.Stop{stopHarare, stopCauseway, stopBelvedere},
		Routes: []models.RouteInput{
			{ID: "R", Name: "City loop", StopIDs: []string{"harare", "causeway", "belvedere"}},
			{ID: "R2", Name: "Return loop", StopIDs: []string{"belvedere", "causeway", "harare"}},
		},
		Vehicles: []models.Vehicle{
			{ID: "V", Plate: "AAA-1111", Capacity: 2},
			{ID: "BUS", Plate: "BBB-2222", Capacity: 100},
		},
		Prices: []models.PriceEntry{
			{OriginStopID: "harare", DestinationStopID: "belvedere", FareClass: domain.FareAdult, Amount: 300},
			{OriginStopID: "harare", DestinationStopID: "causeway", FareClass: domain.FareAdult, Amount: 100},
			{OriginStopID: "harare", DestinationStopID: "causeway", FareClass: domain.FareChild, Amount: 50},
			{OriginStopID: "harare", DestinationStopID: "belvedere", FareClass: domain.FareLuggage, Amount: 75},
			{OriginStopID: "causeway", DestinationStopID: "belvedere", FareClass: domain.FareAdult, Amount: 200},
			{OriginStopID: "belvedere", DestinationStopID: "harare", FareClass: domain.FareAdult, Amount: 300},
		},
	}
}

// stepClock advances one second per reading so trip ids never collide.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// fakeUploader records every batch; fail and block shape its replies.
type fakeUploader struct {
	mu      sync.Mutex
	batches []uploader.Batch
	fail    error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeUploader) Upload(ctx context.Context, b uploader.Batch) error {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return domain.UploadError{RecordType: string(b.RecordType), Err: ctx.Err()}
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return domain.UploadError{RecordType: string(b.RecordType), Err: f.fail}
	}
	f.batches = append(f.batches, b)
	return nil
}

func (f *fakeUploader) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeUploader) uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []string{}
	for _, b := range f.batches {
		for _, it := range b.Items {
			out = append(out, it.BusinessID)
		}
	}
	return out
}

type testEnv struct {
	store    *intdb.Store
	ledger   *LedgerService
	issuer   TicketService
	sync     *SyncService
	location *LocationService
	upload   *fakeUploader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := intdb.Open(ctx, intdb.DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	ref := ReferenceService{Store: store}
	if _, err := ref.Import(ctx, referenceFixture()); err != nil {
		t.Fatalf("import reference: %v", err)
	}

	clock := &stepClock{t: time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)}
	loc := NewLocationService()
	ledger := NewLedgerService(store, "dev-test")
	ledger.Clock = clock.Now
	ledger.Tracker = loc

	up := &fakeUploader{}
	syncSvc := NewSyncService(store, up, "dev-test", 100, 2*time.Second)

	return &testEnv{
		store:    store,
		ledger:   ledger,
		issuer:   TicketService{Ledger: ledger, Prices: PriceTable{Store: store}, Location: loc},
		sync:     syncSvc,
		location: loc,
		upload:   up,
	}
}

func (e *testEnv) openTrip(t *testing.T, route, vehicle string) models.Trip {
	t.Helper()
	trip, err := e.ledger.OpenTrip(context.Background(), route, vehicle)
	if err != nil {
		t.Fatalf("open trip: %v", err)
	}
	return trip
}

func (e *testEnv) issue(t *testing.T, tripID, origin, dest string, class domain.FareClass) models.Ticket {
	t.Helper()
	tk, err := e.issuer.IssueTicket(context.Background(), IssueRequest{
		TripID: tripID, OriginStopID: origin, DestinationStopID: dest, FareClass: class,
	})
	if err != nil {
		t.Fatalf("issue %s->%s %s: %v", origin, dest, class, err)
	}
	return tk
}

func mustErrIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
