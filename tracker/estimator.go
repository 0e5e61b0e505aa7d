package tracker

import (
	"context"

	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// FallbackSpeed is the assumed average speed, in meters per second, when no
// route is available (40 km/h).
const FallbackSpeed = 40.0 * 1000 / 3600

// Estimate sources
const (
	SourceRoute     = "route"
	SourceHaversine = "haversine"
)

// Estimate is a travel-time estimate. It is computed on demand and never stored.
type Estimate struct {
	Polyline        []models.Coordinate `json:"polyline"`
	DurationSeconds float64             `json:"durationSeconds"`
	DistanceMeters  float64             `json:"distanceMeters"`
	Source          string              `json:"source"`
}

// Estimator prefers routing data and falls back to a straight line
type Estimator struct {
	router Router
}

// NewEstimator creates an estimator. A nil router always uses the straight-line estimate.
func NewEstimator(router Router) *Estimator {
	return &Estimator{router: router}
}

// Estimate returns the travel estimate from from to to
func (e *Estimator) Estimate(ctx context.Context, from, to models.Coordinate) Estimate {
	if e.router != nil {
		route, err := e.router.Route(ctx, from, to)
		if err == nil {
			return Estimate{
				Polyline:        route.Polyline,
				DurationSeconds: route.DurationSeconds,
				DistanceMeters:  route.DistanceMeters,
				Source:          SourceRoute,
			}
		}
		zap.S().Warnw("routing unavailable, using straight-line estimate", "error", err)
	}

	distance := Haversine(from, to)
	return Estimate{
		Polyline:        []models.Coordinate{from, to},
		DurationSeconds: distance / FallbackSpeed,
		DistanceMeters:  distance,
		Source:          SourceHaversine,
	}
}
