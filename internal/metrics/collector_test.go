package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func gathered(t *testing.T, c *Collector, name string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				sum += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				sum += m.GetGauge().GetValue()
			}
		}
		return sum
	}
	return 0
}

func TestLedgerHooks(t *testing.T) {
	c := NewCollector()
	c.TripOpened()
	c.TicketIssued("adult")
	c.TicketIssued("luggage")
	c.TicketCancelled()

	if v := gathered(t, c, "conductor_active_trip"); v != 1 {
		t.Fatalf("active trip gauge = %v", v)
	}
	if v := gathered(t, c, "conductor_tickets_issued_total"); v != 2 {
		t.Fatalf("tickets issued = %v", v)
	}

	c.TripClosed()
	if v := gathered(t, c, "conductor_active_trip"); v != 0 {
		t.Fatalf("active trip gauge after close = %v", v)
	}
}

func TestBatchObserveCountsOnlyAcknowledgedEntries(t *testing.T) {
	c := NewCollector()
	c.BatchObserve("ticket", 5, true, 20*time.Millisecond)
	c.BatchObserve("ticket", 3, false, time.Second)

	if v := gathered(t, c, "conductor_sync_entries_sent_total"); v != 5 {
		t.Fatalf("entries sent = %v", v)
	}
	if v := gathered(t, c, "conductor_sync_batches_total"); v != 2 {
		t.Fatalf("batches = %v", v)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	c := NewCollector()
	c.IssueRejectedInc("capacity_exceeded")

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `conductor_issue_rejected_total{code="capacity_exceeded"} 1`) {
		t.Fatalf("metric missing from exposition:\n%s", body)
	}
}
