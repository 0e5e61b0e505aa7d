// Package realtime fans dispatch events out to connected dashboards and crews.
// Connections join topics; publishers address topics and never connections.
package realtime

import (
	"time"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// Event names on the wire
const (
	EventNewRequest        = "newRequest"
	EventNewMission        = "newMission"
	EventStatusUpdate      = "statusUpdate"
	EventLocationUpdate    = "locationUpdate"
	EventDestinationUpdate = "destinationUpdate"
	EventVehicleUpdate     = "vehicleUpdate"
	EventAlert             = "alert"
	EventSubscribe         = "subscribe"
	EventUnsubscribe       = "unsubscribe"
	EventAck               = "ack"
	EventNack              = "nack"
	EventAuthenticated     = "authenticated"
)

// Event is an outbound message
type Event struct {
	Name      string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent stamps an event with the current time
func NewEvent(name string, data interface{}) Event {
	return Event{Name: name, Data: data, Timestamp: time.Now().UTC()}
}

// Publisher delivers events to every connection subscribed to at least one of topics.
type Publisher interface {
	Publish(ev Event, topics ...string)
	PublishAll(ev Event)
}

// RoleTopic addresses every connection holding role
func RoleTopic(role models.Role) string {
	return "role:" + string(role)
}

// UserTopic addresses every connection of one identity
func UserTopic(id string) string {
	return "user:" + id
}

// VehicleTopic scopes events to one vehicle's mission lifecycle
func VehicleTopic(id string) string {
	return "vehicle:" + id
}

// RequestTopic scopes events to one request's status changes
func RequestTopic(id string) string {
	return "request:" + id
}

// StaffTopics are the role rooms of every dispatch-capable role
func StaffTopics() []string {
	topics := make([]string, 0, len(models.StaffRoles))
	for _, r := range models.StaffRoles {
		topics = append(topics, RoleTopic(r))
	}
	return topics
}

// VehicleAudience is the vehicle's own topic plus the staff rooms
func VehicleAudience(id string) []string {
	return append([]string{VehicleTopic(id)}, StaffTopics()...)
}

// LocationPayload is the body of locationUpdate in both directions
type LocationPayload struct {
	VehicleID string    `json:"vehicleId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// DestinationPayload is the body of destinationUpdate. Lat and Lng are null
// when the destination was cleared.
type DestinationPayload struct {
	VehicleID string   `json:"vehicleId"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
}

// NewDestinationPayload builds the payload for a vehicle's current destination
func NewDestinationPayload(vehicleID string, d *models.Destination) DestinationPayload {
	p := DestinationPayload{VehicleID: vehicleID}
	if d != nil {
		lat, lng := d.Latitude, d.Longitude
		p.Lat, p.Lng = &lat, &lng
	}
	return p
}

// StatusPayload is the body of statusUpdate
type StatusPayload struct {
	RequestID string               `json:"requestId"`
	Status    models.RequestStatus `json:"status"`
}
