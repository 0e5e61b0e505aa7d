package tracker

import (
	"context"
	"errors"
	"strings"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/services"
)

// Service resolves destinations and estimates arrival for registered vehicles
type Service struct {
	registry  *services.VehicleRegistry
	geocoder  Geocoder
	estimator *Estimator
}

// NewService creates a tracker service
func NewService(registry *services.VehicleRegistry, geocoder Geocoder, estimator *Estimator) *Service {
	return &Service{registry: registry, geocoder: geocoder, estimator: estimator}
}

// ResolveDestination geocodes text and sends the vehicle there. The registry
// publishes the destinationUpdate.
func (s *Service) ResolveDestination(ctx context.Context, vehicleID, text string) (*models.VehicleView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.ValidationError("destination query is required")
	}
	c, err := s.geocoder.Geocode(ctx, text)
	if errors.Is(err, ErrNoMatch) {
		return nil, services.NotFoundError("no place matches %q", text)
	}
	if err != nil {
		return nil, services.InternalError("failed to resolve destination", err)
	}
	return s.registry.SetDestination(ctx, vehicleID, &c)
}

// ETA estimates the vehicle's arrival at its current destination
func (s *Service) ETA(ctx context.Context, vehicleID string) (*Estimate, error) {
	v, err := s.registry.Get(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if v.Destination == nil {
		return nil, services.ConflictError("vehicle has no destination")
	}
	estimate := s.estimator.Estimate(ctx, v.Location, v.Destination.Coordinate())
	return &estimate, nil
}
