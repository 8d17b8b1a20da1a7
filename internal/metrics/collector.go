package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveTrip prometheus.Gauge

	TripsOpened      prometheus.Counter
	TripsClosed      prometheus.Counter
	TicketsIssued    *prometheus.CounterVec // fare_class label
	TicketsCancelled prometheus.Counter
	IssueRejected    *prometheus.CounterVec // code label

	SyncPending     prometheus.Gauge
	SyncBatches     *prometheus.CounterVec // record_type, result labels
	SyncEntriesSent prometheus.Counter
	SyncDuration    prometheus.Histogram
	NATSConnected   prometheus.Gauge

	LocationUpdates *prometheus.CounterVec // source label: device|feed
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveTrip: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "conductor_active_trip",
			Help: "1 while a trip is active on this device.",
		}),
		TripsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conductor_trips_opened_total",
			Help: "Total trips opened.",
		}),
		TripsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conductor_trips_closed_total",
			Help: "Total trips closed.",
		}),
		TicketsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_tickets_issued_total",
			Help: "Tickets committed to the ledger.",
		}, []string{"fare_class"}),
		TicketsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conductor_tickets_cancelled_total",
			Help: "Tickets cancelled.",
		}),
		IssueRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_issue_rejected_total",
			Help: "Ticket issuance requests rejected before commit.",
		}, []string{"code"}),
		SyncPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "conductor_sync_pending",
			Help: "PENDING entries seen by the last drain.",
		}),
		SyncBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_sync_batches_total",
			Help: "Upload batches by record type and result.",
		}, []string{"record_type", "result"}),
		SyncEntriesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conductor_sync_entries_sent_total",
			Help: "Queue entries acknowledged by the remote.",
		}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "conductor_sync_batch_duration_seconds",
			Help:    "Duration of one upload batch.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "conductor_nats_connected",
			Help: "1 if the NATS sync transport is connected, 0 otherwise.",
		}),
		LocationUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_location_updates_total",
			Help: "Location samples received by source.",
		}, []string{"source"}),
	}

	reg.MustRegister(
		c.ActiveTrip,
		c.TripsOpened, c.TripsClosed, c.TicketsIssued, c.TicketsCancelled, c.IssueRejected,
		c.SyncPending, c.SyncBatches, c.SyncEntriesSent, c.SyncDuration, c.NATSConnected,
		c.LocationUpdates,
	)

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Registry exposes the registry for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Ledger hooks.

func (c *Collector) TripOpened() {
	c.TripsOpened.Inc()
	c.ActiveTrip.Set(1)
}

func (c *Collector) TripClosed() {
	c.TripsClosed.Inc()
	c.ActiveTrip.Set(0)
}

func (c *Collector) TicketIssued(fareClass string) { c.TicketsIssued.WithLabelValues(fareClass).Inc() }

func (c *Collector) TicketCancelled() { c.TicketsCancelled.Inc() }

func (c *Collector) IssueRejectedInc(code string) { c.IssueRejected.WithLabelValues(code).Inc() }

// Sync hooks.

func (c *Collector) SyncPendingSet(n int) { c.SyncPending.Set(float64(n)) }

func (c *Collector) BatchObserve(recordType string, entries int, ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.SyncBatches.WithLabelValues(recordType, result).Inc()
	c.SyncDuration.Observe(d.Seconds())
	if ok {
		c.SyncEntriesSent.Add(float64(entries))
	}
}

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}

// Location hooks.

func (c *Collector) LocationObserved(source string) { c.LocationUpdates.WithLabelValues(source).Inc() }
