package location

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"conductor/internal/domain/models"
	"conductor/internal/services"
	"conductor/internal/utils"
)

const source = "feed"

// Sink receives coordinates; LocationService satisfies it.
type Sink interface {
	Update(coord *models.Coordinate, source string) (services.CurrentStop, bool)
}

// FeedSource polls a GTFS-realtime VehiclePositions feed and forwards the
// position of one vehicle to the sink.
type FeedSource struct {
	URL       string
	VehicleID string
	Sink      Sink
	client    *http.Client
}

func NewFeedSource(url, vehicleID string, sink Sink) *FeedSource {
	return &FeedSource{
		URL:       url,
		VehicleID: strings.TrimSpace(vehicleID),
		Sink:      sink,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Poll fetches the feed once. A feed without our vehicle counts as no fix
// and keeps the last known stop.
func (f *FeedSource) Poll(ctx context.Context) (services.CurrentStop, bool, error) {
	feed, err := f.fetchFeed(ctx)
	if err != nil {
		return services.CurrentStop{}, false, err
	}
	coord := f.position(feed)
	cur, ok := f.Sink.Update(coord, source)
	return cur, ok, nil
}

// Run polls every interval until ctx is done.
func (f *FeedSource) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		cur, ok, err := f.Poll(ctx)
		switch {
		case err != nil:
			utils.Warn("location feed poll failed", "url", f.URL, "error", err)
		case ok && cur.Resolution.Known:
			utils.Debug("location updated", "route_id", cur.RouteID, "stop_id", cur.Resolution.Stop.ID, "live", cur.Resolution.Live)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// position picks our vehicle, or the first positioned vehicle when no id is configured.
func (f *FeedSource) position(feed *gtfs.FeedMessage) *models.Coordinate {
	for _, entity := range feed.GetEntity() {
		vp := entity.GetVehicle()
		if vp == nil || vp.GetPosition() == nil {
			continue
		}
		if f.VehicleID != "" {
			desc := vp.GetVehicle()
			if desc.GetId() != f.VehicleID && desc.GetLabel() != f.VehicleID {
				continue
			}
		}
		pos := vp.GetPosition()
		lat, lon := float64(pos.GetLatitude()), float64(pos.GetLongitude())
		if utils.ValidateCoordinate(lat, lon) != nil {
			return nil
		}
		return &models.Coordinate{Lat: lat, Lon: lon}
	}
	return nil
}

func (f *FeedSource) fetchFeed(ctx context.Context) (*gtfs.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("parse protobuf: %w", err)
	}
	return feed, nil
}
