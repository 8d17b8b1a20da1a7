package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	intdb "conductor/internal/db"
	"conductor/internal/domain"
	"conductor/internal/domain/models"
	"conductor/internal/repositories"
	"conductor/internal/utils"

	"github.com/google/uuid"
)

type LedgerMetrics interface {
	TripOpened()
	TripClosed()
	TicketIssued(fareClass string)
	TicketCancelled()
}

// RouteTracker is told which route the active trip runs on.
type RouteTracker interface {
	Track(route models.Route)
	Untrack()
}

// LedgerService is the system of record for trips, tickets and expenses.
// Every ledger write commits together with its sync queue entry.
type LedgerService struct {
	Store    *intdb.Store
	Trips    repositories.TripRepository
	Tickets  repositories.TicketRepository
	Expenses repositories.ExpenseRepository
	Routes   repositories.RouteRepository
	Queue    repositories.SyncQueueRepository

	DeviceID string
	Metrics  LedgerMetrics
	Tracker  RouteTracker
	Clock    func() time.Time

	locks keyedMutex
}

func NewLedgerService(store *intdb.Store, deviceID string) *LedgerService {
	return &LedgerService{Store: store, DeviceID: deviceID}
}

// now is cut to the stored precision so returned and uploaded records match
// what a later read returns.
func (s *LedgerService) now() time.Time {
	if s.Clock != nil {
		return utils.StampPrecision(s.Clock())
	}
	return utils.NowUTC()
}

// TripID builds the human-legible trip id from route, vehicle and open time.
func TripID(routeID, vehicleID string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s", routeID, vehicleID, utils.FormatTripStamp(at))
}

// OpenTrip starts a trip when no other trip is active.
func (s *LedgerService) OpenTrip(ctx context.Context, routeID, vehicleID string) (models.Trip, error) {
	routeID = strings.TrimSpace(routeID)
	vehicleID = strings.TrimSpace(vehicleID)
	if routeID == "" {
		return models.Trip{}, domain.ValidationError{Field: "route_id", Msg: "required"}
	}
	if vehicleID == "" {
		return models.Trip{}, domain.ValidationError{Field: "vehicle_id", Msg: "required"}
	}

	route, err := s.Routes.GetRoute(ctx, s.Store.Conn(), routeID)
	if err != nil {
		return models.Trip{}, notFoundOr(err, "route")
	}
	if len(route.Stops) < 2 {
		return models.Trip{}, domain.ValidationError{Field: "route_id", Msg: "route needs at least two stops"}
	}
	vehicle, err := s.Routes.GetVehicle(ctx, s.Store.Conn(), vehicleID)
	if err != nil {
		return models.Trip{}, notFoundOr(err, "vehicle")
	}
	if vehicle.Capacity <= 0 {
		return models.Trip{}, domain.ValidationError{Field: "vehicle_id", Msg: "vehicle has no seating capacity"}
	}

	now := s.now()
	trip := models.Trip{
		ID:            TripID(route.ID, vehicle.ID, now),
		RouteID:       route.ID,
		VehicleID:     vehicle.ID,
		Capacity:      vehicle.Capacity,
		Status:        domain.TripActive,
		CreatedAt:     now,
		NextTicketSeq: 1,
	}

	err = s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureNoActiveTrip(ctx, tx); err != nil {
			return err
		}
		if _, err := s.Trips.Get(ctx, tx, trip.ID); err == nil {
			return domain.ConflictError{Resource: "trip", Msg: fmt.Sprintf("trip %s already exists", trip.ID)}
		} else if !errors.Is(err, sql.ErrNoRows) {
			return domain.InternalError{Err: err}
		}
		if err := s.Trips.Insert(ctx, tx, trip); err != nil {
			return domain.InternalError{Msg: "create trip", Err: err}
		}
		if err := s.Trips.ClaimActiveSlot(ctx, tx, trip.ID); err != nil {
			// Another writer on a shared database won the slot.
			if cerr := s.ensureNoActiveTrip(ctx, tx); cerr != nil {
				return cerr
			}
			return domain.InternalError{Msg: "claim active trip", Err: err}
		}
		_, err := enqueueTx(ctx, tx, s.Queue, domain.RecordTripEvent, trip.ID+":open", trip.ID, s.tripEvent(trip, "open", now), now)
		return err
	})
	if err != nil {
		return models.Trip{}, err
	}

	utils.LogEvent("", "ledger", "open_trip", fmt.Sprintf("trip=%s capacity=%d", trip.ID, trip.Capacity))
	if s.Metrics != nil {
		s.Metrics.TripOpened()
	}
	if s.Tracker != nil {
		s.Tracker.Track(route)
	}
	return trip, nil
}

func (s *LedgerService) ensureNoActiveTrip(ctx context.Context, q intdb.Querier) error {
	activeID, ok, err := s.Trips.ActiveTripID(ctx, q)
	if err != nil {
		return domain.InternalError{Err: err}
	}
	if ok {
		return domain.ConflictError{Resource: "trip", Msg: fmt.Sprintf("trip %s is still active", activeID), Err: domain.ErrActiveTripExists}
	}
	return nil
}

// CloseTrip completes an active trip once every record of it has been
// acknowledged by the remote, the trip-open event included.
func (s *LedgerService) CloseTrip(ctx context.Context, tripID string) (models.Trip, error) {
	unlock := s.locks.Lock(tripID)
	defer unlock()

	var closed models.Trip
	now := s.now()
	err := s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		trip, err := s.activeTrip(ctx, tx, tripID)
		if err != nil {
			return err
		}
		pending, err := s.Queue.CountPendingByTrip(ctx, tx, trip.ID)
		if err != nil {
			return domain.InternalError{Err: err}
		}
		if pending > 0 {
			return domain.ConflictError{Resource: "trip", Msg: fmt.Sprintf("%d records not synced yet", pending), Err: domain.ErrPendingWork}
		}
		if ok, err := s.Trips.Complete(ctx, tx, trip.ID, now); err != nil {
			return domain.InternalError{Err: err}
		} else if !ok {
			return domain.ConflictError{Resource: "trip", Err: domain.ErrAlreadyCompleted}
		}
		if err := s.Trips.ReleaseActiveSlot(ctx, tx, trip.ID); err != nil {
			return domain.InternalError{Err: err}
		}
		trip.Status = domain.TripCompleted
		trip.CompletedAt = &now
		closed = trip
		_, err = enqueueTx(ctx, tx, s.Queue, domain.RecordTripEvent, trip.ID+":close", trip.ID, s.tripEvent(trip, "close", now), now)
		return err
	})
	if err != nil {
		return models.Trip{}, err
	}

	utils.LogEvent("", "ledger", "close_trip", "trip="+closed.ID)
	if s.Metrics != nil {
		s.Metrics.TripClosed()
	}
	if s.Tracker != nil {
		s.Tracker.Untrack()
	}
	return closed, nil
}

// AllocateTicketSequence hands out the next ticket number of an active trip.
func (s *LedgerService) AllocateTicketSequence(ctx context.Context, tripID string) (int, error) {
	unlock := s.locks.Lock(tripID)
	defer unlock()

	var seq int
	err := s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		seq, err = s.nextSequence(ctx, tx, tripID)
		return err
	})
	return seq, err
}

func (s *LedgerService) nextSequence(ctx context.Context, q intdb.Querier, tripID string) (int, error) {
	seq, err := s.Trips.NextSequence(ctx, q, tripID)
	if errors.Is(err, sql.ErrNoRows) {
		if _, terr := s.activeTrip(ctx, q, tripID); terr != nil {
			return 0, terr
		}
		return 0, domain.InternalError{Msg: "ticket counter not advanced"}
	}
	if err != nil {
		return 0, domain.InternalError{Err: err}
	}
	return seq, nil
}

// RecordTicket commits a ticket whose number came from AllocateTicketSequence.
func (s *LedgerService) RecordTicket(ctx context.Context, t models.Ticket) (models.Ticket, error) {
	if !t.FareClass.Valid() {
		return t, domain.ValidationError{Field: "fare_class", Msg: fmt.Sprintf("unknown fare class %q", t.FareClass)}
	}
	unlock := s.locks.Lock(t.TripID)
	defer unlock()

	if t.IssuedAt.IsZero() {
		t.IssuedAt = s.now()
	} else {
		t.IssuedAt = utils.StampPrecision(t.IssuedAt)
	}
	t.CancelledAt, t.CancelReason, t.DepartedAt = nil, "", nil

	err := s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		trip, err := s.activeTrip(ctx, tx, t.TripID)
		if err != nil {
			return err
		}
		if t.Seq < 1 || t.Seq >= trip.NextTicketSeq {
			return domain.ValidationError{Field: "seq", Msg: fmt.Sprintf("sequence %d was not allocated", t.Seq)}
		}
		used, err := s.Tickets.Exists(ctx, tx, t.TripID, t.Seq)
		if err != nil {
			return domain.InternalError{Err: err}
		}
		if used {
			return domain.ConflictError{Resource: "ticket", Msg: fmt.Sprintf("sequence %d already recorded", t.Seq)}
		}
		return s.insertTicket(ctx, tx, t)
	})
	if err != nil {
		return t, err
	}
	s.ticketIssued(t)
	return t, nil
}

// CommitTicket allocates the next number, writes the ticket and queues it as
// one unit. Seat capacity is checked again under the trip lock.
func (s *LedgerService) CommitTicket(ctx context.Context, d models.TicketDraft) (models.Ticket, error) {
	if !d.FareClass.Valid() {
		return models.Ticket{}, domain.ValidationError{Field: "fare_class", Msg: fmt.Sprintf("unknown fare class %q", d.FareClass)}
	}
	unlock := s.locks.Lock(d.TripID)
	defer unlock()

	t := models.Ticket{
		TripID:            d.TripID,
		OriginStopID:      d.OriginStopID,
		DestinationStopID: d.DestinationStopID,
		FareClass:         d.FareClass,
		Amount:            d.Amount,
		IssuedAt:          s.now(),
	}
	err := s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		trip, err := s.activeTrip(ctx, tx, d.TripID)
		if err != nil {
			return err
		}
		if d.FareClass.ConsumesSeat() {
			usage, err := s.seatUsage(ctx, tx, trip)
			if err != nil {
				return err
			}
			if usage.RemainingSeats <= 0 {
				return capacityExceeded(usage)
			}
		}
		if t.Seq, err = s.nextSequence(ctx, tx, d.TripID); err != nil {
			return err
		}
		return s.insertTicket(ctx, tx, t)
	})
	if err != nil {
		return models.Ticket{}, err
	}
	s.ticketIssued(t)
	return t, nil
}

func (s *LedgerService) insertTicket(ctx context.Context, q intdb.Querier, t models.Ticket) error {
	if err := s.Tickets.Insert(ctx, q, t); err != nil {
		return domain.InternalError{Msg: "record ticket", Err: err}
	}
	_, err := enqueueTx(ctx, q, s.Queue, domain.RecordTicket, t.BusinessID(), t.TripID, t, t.IssuedAt)
	return err
}

func (s *LedgerService) ticketIssued(t models.Ticket) {
	utils.LogEvent("", "ledger", "record_ticket", fmt.Sprintf("ticket=%s class=%s amount=%d", t.BusinessID(), t.FareClass, t.Amount))
	if s.Metrics != nil {
		s.Metrics.TicketIssued(string(t.FareClass))
	}
}

func capacityExceeded(u models.SeatUsage) error {
	return domain.ConflictError{
		Resource: "trip",
		Msg:      fmt.Sprintf("all %d seats sold", u.Capacity),
		Err:      domain.ErrCapacityExceeded,
	}
}

// CancelTicket voids a ticket. Only the cancellation fields change.
func (s *LedgerService) CancelTicket(ctx context.Context, tripID string, seq int, reason string) (models.Ticket, error) {
	reason = utils.NormalizeSpace(reason)
	unlock := s.locks.Lock(tripID)
	defer unlock()

	var cancelled models.Ticket
	now := s.now()
	err := s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.activeTrip(ctx, tx, tripID); err != nil {
			return err
		}
		t, err := s.Tickets.Get(ctx, tx, tripID, seq)
		if err != nil {
			return notFoundOr(err, "ticket")
		}
		if t.Cancelled() {
			return domain.ConflictError{Resource: "ticket", Err: domain.ErrAlreadyCancelled}
		}
		ok, err := s.Tickets.Cancel(ctx, tx, tripID, seq, reason, now)
		if err != nil {
			return domain.InternalError{Err: err}
		}
		if !ok {
			return domain.ConflictError{Resource: "ticket", Err: domain.ErrAlreadyCancelled}
		}
		t.CancelledAt = &now
		t.CancelReason = reason
		cancelled = t

		payload := models.TicketCancellation{TripID: tripID, Seq: seq, Reason: reason, CancelledAt: now}
		_, err = enqueueTx(ctx, tx, s.Queue, domain.RecordTicketCancellation, t.BusinessID()+":cancel", tripID, payload, now)
		return err
	})
	if err != nil {
		return models.Ticket{}, err
	}

	utils.LogEvent("", "ledger", "cancel_ticket", "ticket="+cancelled.BusinessID())
	if s.Metrics != nil {
		s.Metrics.TicketCancelled()
	}
	return cancelled, nil
}

// MarkDeparted records that a passenger alighted. Seats are not freed and
// repeating the call changes nothing.
func (s *LedgerService) MarkDeparted(ctx context.Context, tripID string, seq int) (models.Ticket, error) {
	unlock := s.locks.Lock(tripID)
	defer unlock()

	var out models.Ticket
	err := s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.activeTrip(ctx, tx, tripID); err != nil {
			return err
		}
		t, err := s.Tickets.Get(ctx, tx, tripID, seq)
		if err != nil {
			return notFoundOr(err, "ticket")
		}
		if t.Cancelled() {
			return domain.ConflictError{Resource: "ticket", Err: domain.ErrAlreadyCancelled}
		}
		if !t.FareClass.ConsumesSeat() {
			return domain.ValidationError{Field: "seq", Msg: "luggage tickets carry no passenger"}
		}
		out = t
		if t.DepartedAt != nil {
			return nil
		}
		now := s.now()
		if err := s.Tickets.MarkDeparted(ctx, tx, tripID, seq, now); err != nil {
			return domain.InternalError{Err: err}
		}
		out.DepartedAt = &now

		payload := models.TicketDeparture{TripID: tripID, Seq: seq, DepartedAt: now}
		_, err = enqueueTx(ctx, tx, s.Queue, domain.RecordTicketDeparture, t.BusinessID()+":depart", tripID, payload, now)
		return err
	})
	return out, err
}

// SeatUsage reports occupancy. Cancelled tickets are excluded, luggage never
// takes a seat and departures do not free seats.
func (s *LedgerService) SeatUsage(ctx context.Context, tripID string) (models.SeatUsage, error) {
	trip, err := s.loadTrip(ctx, s.Store.Conn(), tripID)
	if err != nil {
		return models.SeatUsage{}, err
	}
	return s.seatUsage(ctx, s.Store.Conn(), trip)
}

func (s *LedgerService) seatUsage(ctx context.Context, q intdb.Querier, trip models.Trip) (models.SeatUsage, error) {
	sold, luggage, departed, err := s.Tickets.SeatCounts(ctx, q, trip.ID)
	if err != nil {
		return models.SeatUsage{}, domain.InternalError{Err: err}
	}
	return models.SeatUsage{
		TripID:         trip.ID,
		Capacity:       trip.Capacity,
		SoldPassengers: sold,
		Luggage:        luggage,
		Departed:       departed,
		RemainingSeats: max(0, trip.Capacity-sold),
	}, nil
}

// RecordExpense books a cost against an active trip and queues it.
func (s *LedgerService) RecordExpense(ctx context.Context, tripID string, in models.ExpenseInput) (models.Expense, error) {
	category := strings.ToLower(utils.NormalizeSpace(in.Category))
	if category == "" {
		return models.Expense{}, domain.ValidationError{Field: "category", Msg: "required"}
	}
	if in.Amount <= 0 {
		return models.Expense{}, domain.ValidationError{Field: "amount", Msg: "must be positive"}
	}

	e := models.Expense{
		ID:        uuid.NewString(),
		TripID:    tripID,
		Category:  category,
		Amount:    in.Amount,
		Note:      utils.NormalizeSpace(in.Note),
		CreatedAt: s.now(),
	}
	err := s.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.activeTrip(ctx, tx, tripID); err != nil {
			return err
		}
		if err := s.Expenses.Insert(ctx, tx, e); err != nil {
			return domain.InternalError{Msg: "record expense", Err: err}
		}
		_, err := enqueueTx(ctx, tx, s.Queue, domain.RecordExpense, "expense:"+e.ID, tripID, e, e.CreatedAt)
		return err
	})
	if err != nil {
		return models.Expense{}, err
	}
	utils.LogEvent("", "ledger", "record_expense", fmt.Sprintf("trip=%s category=%s amount=%d", tripID, category, e.Amount))
	return e, nil
}

// ActiveTrip returns the trip currently accepting tickets.
func (s *LedgerService) ActiveTrip(ctx context.Context) (models.Trip, error) {
	id, ok, err := s.Trips.ActiveTripID(ctx, s.Store.Conn())
	if err != nil {
		return models.Trip{}, domain.InternalError{Err: err}
	}
	if !ok {
		return models.Trip{}, domain.NotFoundError{Resource: "active trip"}
	}
	return s.loadTrip(ctx, s.Store.Conn(), id)
}

// ResumeTracking points the tracker at the active trip's route after a restart.
func (s *LedgerService) ResumeTracking(ctx context.Context) error {
	trip, err := s.ActiveTrip(ctx)
	if domain.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	route, err := s.Route(ctx, trip.RouteID)
	if err != nil {
		return err
	}
	if s.Tracker != nil {
		s.Tracker.Track(route)
	}
	return nil
}

func (s *LedgerService) GetTrip(ctx context.Context, tripID string) (models.Trip, error) {
	return s.loadTrip(ctx, s.Store.Conn(), tripID)
}

func (s *LedgerService) ListTrips(ctx context.Context, limit int) ([]models.Trip, error) {
	trips, err := s.Trips.List(ctx, s.Store.Conn(), limit)
	if err != nil {
		return nil, domain.InternalError{Err: err}
	}
	return trips, nil
}

func (s *LedgerService) Route(ctx context.Context, routeID string) (models.Route, error) {
	route, err := s.Routes.GetRoute(ctx, s.Store.Conn(), routeID)
	if err != nil {
		return models.Route{}, notFoundOr(err, "route")
	}
	return route, nil
}

func (s *LedgerService) GetTicket(ctx context.Context, tripID string, seq int) (models.Ticket, error) {
	t, err := s.Tickets.Get(ctx, s.Store.Conn(), tripID, seq)
	if err != nil {
		return t, notFoundOr(err, "ticket")
	}
	return t, nil
}

func (s *LedgerService) ListTickets(ctx context.Context, tripID string) ([]models.Ticket, error) {
	if _, err := s.loadTrip(ctx, s.Store.Conn(), tripID); err != nil {
		return nil, err
	}
	tickets, err := s.Tickets.ListByTrip(ctx, s.Store.Conn(), tripID)
	if err != nil {
		return nil, domain.InternalError{Err: err}
	}
	return tickets, nil
}

func (s *LedgerService) ListExpenses(ctx context.Context, tripID string) ([]models.Expense, error) {
	if _, err := s.loadTrip(ctx, s.Store.Conn(), tripID); err != nil {
		return nil, err
	}
	out, err := s.Expenses.ListByTrip(ctx, s.Store.Conn(), tripID)
	if err != nil {
		return nil, domain.InternalError{Err: err}
	}
	return out, nil
}

// Breakdown aggregates ticket counts and revenue per fare class for reporting.
func (s *LedgerService) Breakdown(ctx context.Context, tripID string) (models.TripBreakdown, error) {
	conn := s.Store.Conn()
	trip, err := s.loadTrip(ctx, conn, tripID)
	if err != nil {
		return models.TripBreakdown{}, err
	}
	rows, cancelled, err := s.Tickets.Breakdown(ctx, conn, trip.ID)
	if err != nil {
		return models.TripBreakdown{}, domain.InternalError{Err: err}
	}
	expenses, err := s.Expenses.Total(ctx, conn, trip.ID)
	if err != nil {
		return models.TripBreakdown{}, domain.InternalError{Err: err}
	}

	byClass := map[domain.FareClass]models.ClassBreakdown{}
	for _, r := range rows {
		byClass[r.FareClass] = r
	}
	out := models.TripBreakdown{TripID: trip.ID, Classes: []models.ClassBreakdown{}, Cancelled: cancelled, ExpenseTotal: expenses}
	for _, class := range domain.FareClasses {
		r, ok := byClass[class]
		if !ok {
			r = models.ClassBreakdown{FareClass: class}
		}
		out.Classes = append(out.Classes, r)
		out.Issued += r.Count
		out.Revenue += r.Revenue
	}
	out.Issued += cancelled
	out.Net = out.Revenue - out.ExpenseTotal
	return out, nil
}

func (s *LedgerService) loadTrip(ctx context.Context, q intdb.Querier, tripID string) (models.Trip, error) {
	tripID = strings.TrimSpace(tripID)
	if tripID == "" {
		return models.Trip{}, domain.ValidationError{Field: "trip_id", Msg: "required"}
	}
	trip, err := s.Trips.Get(ctx, q, tripID)
	if err != nil {
		return trip, notFoundOr(err, "trip")
	}
	return trip, nil
}

func (s *LedgerService) activeTrip(ctx context.Context, q intdb.Querier, tripID string) (models.Trip, error) {
	trip, err := s.loadTrip(ctx, q, tripID)
	if err != nil {
		return trip, err
	}
	if !trip.Active() {
		return trip, domain.ConflictError{Resource: "trip", Msg: fmt.Sprintf("trip %s is completed", trip.ID), Err: domain.ErrAlreadyCompleted}
	}
	return trip, nil
}

func (s *LedgerService) tripEvent(t models.Trip, event string, at time.Time) models.TripEvent {
	return models.TripEvent{
		TripID:    t.ID,
		RouteID:   t.RouteID,
		VehicleID: t.VehicleID,
		Event:     event,
		Status:    t.Status,
		At:        at,
		DeviceID:  s.DeviceID,
	}
}

func notFoundOr(err error, resource string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Resource: resource}
	}
	return domain.InternalError{Err: err}
}

// keyedMutex serializes work per key without blocking other keys.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*keyedEntry{}
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
