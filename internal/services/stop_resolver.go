package services

import (
	"math"

	"conductor/internal/domain/models"
	"conductor/internal/utils"
)

// StopResolution is the resolver's answer. Known is false for the Unknown
// sentinel; Live is true only when it came from a coordinate in this call.
// DistanceKm is -1 when no live distance was computed.
type StopResolution struct {
	Stop       models.Stop `json:"stop"`
	DistanceKm float64     `json:"distance_km"`
	Live       bool        `json:"live"`
	Known      bool        `json:"known"`
}

// Unknown is returned when there is neither a usable coordinate nor a last known stop.
var Unknown = StopResolution{DistanceKm: -1}

// ResolveCurrentStop returns the route stop nearest to coord. Only stops on
// the route are considered, ties go to the earlier stop in route order and no
// distance threshold applies. Without a usable coordinate it falls back to
// lastKnown.
func ResolveCurrentStop(route models.Route, coord *models.Coordinate, lastKnown *models.Stop) StopResolution {
	if coord != nil && len(route.Stops) > 0 && utils.ValidateCoordinate(coord.Lat, coord.Lon) == nil {
		best := -1
		bestDist := math.Inf(1)
		for i, s := range route.Stops {
			d := utils.HaversineKm(coord.Lat, coord.Lon, s.Lat, s.Lon)
			if d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			return StopResolution{Stop: route.Stops[best], DistanceKm: bestDist, Live: true, Known: true}
		}
	}
	if lastKnown != nil {
		return StopResolution{Stop: *lastKnown, DistanceKm: -1, Known: true}
	}
	return Unknown
}
