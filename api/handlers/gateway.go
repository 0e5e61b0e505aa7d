package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/linesmerrill/ambulance-dispatch-api/api"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/realtime"
	"github.com/linesmerrill/ambulance-dispatch-api/services"
)

// Gateway handles the events crews and dashboards push over the websocket.
// It implements realtime.MessageHandler.
type Gateway struct {
	Registry *services.VehicleRegistry
	Alerts   *services.Alerts
}

type locationMessage struct {
	VehicleID string    `json:"vehicleId"`
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

type destinationMessage struct {
	VehicleID string   `json:"vehicleId"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
}

// HandleMessage persists the pushed event and returns what the ack carries
func (g Gateway) HandleMessage(ctx context.Context, c *realtime.Client, event string, data json.RawMessage) (interface{}, error) {
	ctx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()

	switch event {
	case realtime.EventLocationUpdate:
		var msg locationMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, services.ValidationError("malformed location update")
		}
		if msg.Lat == nil || msg.Lng == nil {
			return nil, services.ValidationError("lat and lng are required")
		}
		if err := g.authorizeVehicle(ctx, c.Identity, msg.VehicleID); err != nil {
			return nil, err
		}
		return g.Registry.SetLocation(ctx, msg.VehicleID, models.Coordinate{Latitude: *msg.Lat, Longitude: *msg.Lng}, msg.Timestamp)

	case realtime.EventDestinationUpdate:
		var msg destinationMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, services.ValidationError("malformed destination update")
		}
		if (msg.Lat == nil) != (msg.Lng == nil) {
			return nil, services.ValidationError("lat and lng must be set together")
		}
		if err := g.authorizeVehicle(ctx, c.Identity, msg.VehicleID); err != nil {
			return nil, err
		}
		var dest *models.Coordinate
		if msg.Lat != nil {
			dest = &models.Coordinate{Latitude: *msg.Lat, Longitude: *msg.Lng}
		}
		return g.Registry.SetDestination(ctx, msg.VehicleID, dest)

	case realtime.EventAlert:
		if !c.Identity.Role.IsStaff() {
			return nil, services.AuthorizationError("only staff may raise alerts")
		}
		var in services.AlertInput
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, services.ValidationError("malformed alert")
		}
		if in.Source == "" {
			in.Source = c.Identity.ID
		}
		return g.Alerts.Raise(ctx, in)
	}
	return nil, services.ValidationError("unknown event %q", event)
}

// AuthorizeTopic lets a non-staff connection follow the vehicle it crews.
// Request topics carry patient details and stay staff only.
func (g Gateway) AuthorizeTopic(ctx context.Context, identity models.Identity, topic string) error {
	if !strings.HasPrefix(topic, "vehicle:") {
		return services.AuthorizationError("topic is restricted to staff")
	}
	ctx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()
	return g.authorizeVehicle(ctx, identity, strings.TrimPrefix(topic, "vehicle:"))
}

// authorizeVehicle lets staff act on any vehicle and everyone else only on
// the vehicle they crew.
func (g Gateway) authorizeVehicle(ctx context.Context, identity models.Identity, vehicleID string) error {
	if identity.Role.IsStaff() {
		return nil
	}
	view, err := g.Registry.Get(ctx, vehicleID)
	if err != nil {
		return err
	}
	for _, member := range view.Crew {
		if member.ID.Hex() == identity.ID {
			return nil
		}
	}
	return services.AuthorizationError("not a crew member of this vehicle")
}
