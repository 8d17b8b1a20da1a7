package services

import (
	"math"
	"testing"

	"conductor/internal/domain/models"
)

func lineRoute() models.Route {
	return models.Route{ID: "L", Stops: []models.Stop{
		{ID: "a", Lat: 0, Lon: 0},
		{ID: "b", Lat: 0, Lon: 0.02},
		{ID: "c", Lat: 0, Lon: 0.04},
	}}
}

func TestResolveNearestStop(t *testing.T) {
	res := ResolveCurrentStop(lineRoute(), &models.Coordinate{Lat: 0.001, Lon: 0.039}, nil)
	if !res.Known || !res.Live || res.Stop.ID != "c" {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if res.DistanceKm <= 0 || res.DistanceKm > 0.5 {
		t.Fatalf("distance = %f", res.DistanceKm)
	}
}

func TestResolveTieGoesToFirstInRouteOrder(t *testing.T) {
	midpoint := &models.Coordinate{Lat: 0, Lon: 0.01}
	for i := 0; i < 10; i++ {
		res := ResolveCurrentStop(lineRoute(), midpoint, nil)
		if res.Stop.ID != "a" {
			t.Fatalf("tie resolved to %q, want a", res.Stop.ID)
		}
	}

	reversed := models.Route{ID: "L2", Stops: []models.Stop{lineRoute().Stops[1], lineRoute().Stops[0]}}
	if res := ResolveCurrentStop(reversed, midpoint, nil); res.Stop.ID != "b" {
		t.Fatalf("tie on reversed route resolved to %q, want b", res.Stop.ID)
	}
}

func TestResolveOnlyConsidersRouteStops(t *testing.T) {
	route := models.Route{ID: "short", Stops: []models.Stop{{ID: "far", Lat: 1, Lon: 1}}}
	res := ResolveCurrentStop(route, &models.Coordinate{Lat: 0, Lon: 0}, nil)
	if res.Stop.ID != "far" || !res.Live {
		t.Fatalf("expected the only route stop regardless of distance, got %+v", res)
	}
	if math.Abs(res.DistanceKm-157.25) > 1 {
		t.Fatalf("distance = %f, want about 157 km", res.DistanceKm)
	}
}

func TestResolveFallsBackToLastKnown(t *testing.T) {
	last := &models.Stop{ID: "b"}
	res := ResolveCurrentStop(lineRoute(), nil, last)
	if !res.Known || res.Live || res.Stop.ID != "b" {
		t.Fatalf("expected last known stop, got %+v", res)
	}

	res = ResolveCurrentStop(lineRoute(), &models.Coordinate{Lat: 200, Lon: 0}, last)
	if res.Stop.ID != "b" || res.Live {
		t.Fatalf("invalid coordinate must fall back, got %+v", res)
	}

	res = ResolveCurrentStop(lineRoute(), nil, nil)
	if res != Unknown || res.Known {
		t.Fatalf("expected Unknown, got %+v", res)
	}
}

func TestLocationServiceKeepsLatestStop(t *testing.T) {
	loc := NewLocationService()
	if _, ok := loc.Update(&models.Coordinate{}, "device"); ok {
		t.Fatalf("update without a tracked route must report false")
	}

	loc.Track(lineRoute())
	cur, ok := loc.CurrentStop("L")
	if !ok || cur.Resolution.Known {
		t.Fatalf("fresh track should be unknown, got %+v", cur)
	}

	loc.Update(&models.Coordinate{Lat: 0, Lon: 0.021}, "device")
	cur, _ = loc.CurrentStop("L")
	if cur.Resolution.Stop.ID != "b" || !cur.Resolution.Live {
		t.Fatalf("unexpected current stop %+v", cur)
	}

	// No fix this cycle keeps the last stop.
	loc.Update(nil, "device")
	cur, _ = loc.CurrentStop("L")
	if cur.Resolution.Stop.ID != "b" || cur.Resolution.Live || cur.Coordinate == nil {
		t.Fatalf("no-fix update lost the last stop: %+v", cur)
	}

	if _, ok := loc.CurrentStop("other"); ok {
		t.Fatalf("other routes must not see this route's stop")
	}

	loc.Untrack()
	if _, ok := loc.Current(); ok {
		t.Fatalf("untrack should clear the slot")
	}
}
