// Package geofence resolves a submitted position against the registered
// admission zones. It is pure: position + candidate locations in, best match
// or a diagnostic miss out.
package geofence

import (
	"math"

	"attendance.service/internal/core/model"
	"github.com/google/uuid"
)

const earthRadiusMeters = 6371000

// Match is an in-radius resolution.
type Match struct {
	Location model.Location
	Distance float64
}

// Miss reports the single closest location when nothing is in radius, so the
// employee can see how far off they are.
type Miss struct {
	NearestName     string
	NearestDistance float64
}

// Distance returns the great-circle distance in meters between two
// coordinates (haversine).
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	sinDLat := math.Sin(dLat / 2)
	sinDLng := math.Sin(dLng / 2)

	h := sinDLat*sinDLat + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*sinDLng*sinDLng
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Resolve picks the admission zone for a position. The employee's home
// location wins whenever it is in radius, even if another zone is closer;
// otherwise the nearest in-radius zone wins. Equal distances keep the
// first-encountered candidate (stable in input order). When nothing is in
// radius the returned Miss names the closest zone.
func Resolve(lat, lng float64, homeID *uuid.UUID, locations []model.Location) (*Match, *Miss) {
	var best *Match
	var nearestName string
	nearestDistance := math.Inf(1)

	for _, loc := range locations {
		if !loc.IsActive {
			continue
		}
		d := Distance(lat, lng, loc.Lat, loc.Lng)

		if d < nearestDistance {
			nearestDistance = d
			nearestName = loc.Name
		}
		if d > loc.RadiusMeters {
			continue
		}

		if homeID != nil && loc.ID == *homeID {
			return &Match{Location: loc, Distance: d}, nil
		}
		if best == nil || d < best.Distance {
			l := loc
			best = &Match{Location: l, Distance: d}
		}
	}

	if best != nil {
		return best, nil
	}
	if nearestName == "" {
		return nil, &Miss{}
	}
	return nil, &Miss{NearestName: nearestName, NearestDistance: math.Round(nearestDistance)}
}
