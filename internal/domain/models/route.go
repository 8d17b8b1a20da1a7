package models

import "conductor/internal/domain"

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Stop is immutable reference data.
type Stop struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Coordinate returns the stop position.
func (s Stop) Coordinate() Coordinate {
	return Coordinate{Lat: s.Lat, Lon: s.Lon}
}

// Route is an ordered sequence of stops.
type Route struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stops []Stop `json:"stops"`
}

// StopByID returns the stop with the given id when it belongs to the route.
func (r Route) StopByID(id string) (Stop, bool) {
	for _, s := range r.Stops {
		if s.ID == id {
			return s, true
		}
	}
	return Stop{}, false
}

// Position returns the index of the stop in route order, or -1.
func (r Route) Position(stopID string) int {
	for i, s := range r.Stops {
		if s.ID == stopID {
			return i
		}
	}
	return -1
}

// Vehicle carries the seating capacity used for new trips.
type Vehicle struct {
	ID       string `json:"id"`
	Plate    string `json:"plate"`
	Capacity int    `json:"capacity"`
}

// PriceEntry is a directional fare for one class.
type PriceEntry struct {
	OriginStopID      string           `json:"origin_stop_id"`
	DestinationStopID string           `json:"destination_stop_id"`
	FareClass         domain.FareClass `json:"fare_class"`
	Amount            int64            `json:"amount"`
}

// ReferenceData is the document imported when reference tables are (re)loaded.
type ReferenceData struct {
	Stops    []Stop       `json:"stops"`
	Routes   []RouteInput `json:"routes"`
	Vehicles []Vehicle    `json:"vehicles"`
	Prices   []PriceEntry `json:"prices"`
}

// RouteInput references stops by id in travel order.
type RouteInput struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	StopIDs []string `json:"stop_ids"`
}
