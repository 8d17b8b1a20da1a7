package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"conductor/internal/domain/models"
	"conductor/internal/services"
)

func testRoute() models.Route {
	return models.Route{ID: "L", Stops: []models.Stop{
		{ID: "a", Lat: 0, Lon: 0},
		{ID: "b", Lat: 0, Lon: 0.02},
		{ID: "c", Lat: 0, Lon: 0.04},
	}}
}

func vehicleEntity(id string, lat, lon float32) *gtfs.FeedEntity {
	return &gtfs.FeedEntity{
		Id: proto.String("e-" + id),
		Vehicle: &gtfs.VehiclePosition{
			Vehicle:  &gtfs.VehicleDescriptor{Id: proto.String(id)},
			Position: &gtfs.Position{Latitude: proto.Float32(lat), Longitude: proto.Float32(lon)},
		},
	}
}

func feedServer(t *testing.T, entities ...*gtfs.FeedEntity) *httptest.Server {
	t.Helper()
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
		Entity: entities,
	}
	body, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal feed: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-protobuf")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPollPicksConfiguredVehicle(t *testing.T) {
	srv := feedServer(t,
		vehicleEntity("other", 0, 0.039),
		vehicleEntity("bus-7", 0, 0.021),
	)
	loc := services.NewLocationService()
	loc.Track(testRoute())

	cur, ok, err := NewFeedSource(srv.URL, "bus-7", loc).Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !ok || cur.Resolution.Stop.ID != "b" || !cur.Resolution.Live {
		t.Fatalf("unexpected current stop %+v", cur)
	}
}

func TestPollWithoutOurVehicleKeepsLastStop(t *testing.T) {
	loc := services.NewLocationService()
	loc.Track(testRoute())
	loc.Update(&models.Coordinate{Lat: 0, Lon: 0.039}, "device")

	srv := feedServer(t, vehicleEntity("other", 0, 0))
	cur, ok, err := NewFeedSource(srv.URL, "bus-7", loc).Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !ok || cur.Resolution.Stop.ID != "c" || cur.Resolution.Live {
		t.Fatalf("expected last known stop c, got %+v", cur)
	}
}

func TestPollReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	loc := services.NewLocationService()
	if _, _, err := NewFeedSource(srv.URL, "", loc).Poll(context.Background()); err == nil {
		t.Fatalf("expected an error for a 502 feed")
	}
}
