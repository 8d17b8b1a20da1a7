package services

import (
	"sync/atomic"
	"time"

	"conductor/internal/domain/models"
	"conductor/internal/utils"
)

type LocationMetrics interface {
	LocationObserved(source string)
}

// CurrentStop is the latest resolution for the tracked route.
type CurrentStop struct {
	RouteID    string             `json:"route_id"`
	Resolution StopResolution     `json:"resolution"`
	Coordinate *models.Coordinate `json:"coordinate,omitempty"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

type trackedRoute struct {
	route   models.Route
	current CurrentStop
}

// LocationService is a single-slot holder of the latest known stop. Updates
// replace the slot; readers load it without blocking the producer.
type LocationService struct {
	slot    atomic.Pointer[trackedRoute]
	Metrics LocationMetrics
}

func NewLocationService() *LocationService {
	return &LocationService{}
}

// Track switches the holder to route and forgets the previous route's stop.
func (l *LocationService) Track(route models.Route) {
	l.slot.Store(&trackedRoute{
		route:   route,
		current: CurrentStop{RouteID: route.ID, Resolution: Unknown, UpdatedAt: utils.NowUTC()},
	})
}

// Untrack clears the holder, typically when the trip closes.
func (l *LocationService) Untrack() {
	l.slot.Store(nil)
}

// Update resolves coord against the tracked route. A nil coord means no fix
// this cycle; the last known stop is kept. Returns false when no route is tracked.
func (l *LocationService) Update(coord *models.Coordinate, source string) (CurrentStop, bool) {
	if l.Metrics != nil {
		l.Metrics.LocationObserved(source)
	}
	for {
		prev := l.slot.Load()
		if prev == nil {
			return CurrentStop{}, false
		}
		var last *models.Stop
		if prev.current.Resolution.Known {
			s := prev.current.Resolution.Stop
			last = &s
		}
		res := ResolveCurrentStop(prev.route, coord, last)
		next := &trackedRoute{
			route: prev.route,
			current: CurrentStop{
				RouteID:    prev.route.ID,
				Resolution: res,
				UpdatedAt:  utils.NowUTC(),
			},
		}
		if coord != nil {
			c := *coord
			next.current.Coordinate = &c
		} else {
			next.current.Coordinate = prev.current.Coordinate
		}
		if l.slot.CompareAndSwap(prev, next) {
			return next.current, true
		}
	}
}

// CurrentStop returns the latest resolution when routeID is the tracked route.
func (l *LocationService) CurrentStop(routeID string) (CurrentStop, bool) {
	cur := l.slot.Load()
	if cur == nil || cur.route.ID != routeID {
		return CurrentStop{}, false
	}
	return cur.current, true
}

// Current returns whatever is tracked.
func (l *LocationService) Current() (CurrentStop, bool) {
	cur := l.slot.Load()
	if cur == nil {
		return CurrentStop{}, false
	}
	return cur.current, true
}
