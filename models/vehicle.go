package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VehicleStatus is the single status enum shared by every vehicle mutator
type VehicleStatus string

// Vehicle statuses
const (
	VehicleOffDuty     VehicleStatus = "OFF_DUTY"
	VehicleAvailable   VehicleStatus = "AVAILABLE"
	VehicleOnMission   VehicleStatus = "ON_MISSION"
	VehicleMaintenance VehicleStatus = "MAINTENANCE"
)

// VehicleStatuses lists every accepted vehicle status
var VehicleStatuses = []VehicleStatus{VehicleOffDuty, VehicleAvailable, VehicleOnMission, VehicleMaintenance}

// Valid reports whether s is one of VehicleStatuses
func (s VehicleStatus) Valid() bool {
	for _, v := range VehicleStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Vehicle holds the structure for the vehicles collection in mongo
type Vehicle struct {
	ID          primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Name        string               `json:"name" bson:"name"`
	Mobile      string               `json:"mobile" bson:"mobile"`
	Status      VehicleStatus        `json:"status" bson:"status"`
	Location    Coordinate           `json:"location" bson:"location"`
	Destination *Destination         `json:"destination" bson:"destination"`
	Mission     *primitive.ObjectID  `json:"mission" bson:"mission"`
	Crew        []primitive.ObjectID `json:"crew" bson:"crew"`
	LastUpdated time.Time            `json:"lastUpdated" bson:"lastUpdated"`
}

// HasCrewMember reports whether staffID is on the vehicle's crew
func (v Vehicle) HasCrewMember(staffID primitive.ObjectID) bool {
	for _, id := range v.Crew {
		if id == staffID {
			return true
		}
	}
	return false
}

// CrewMember is a crew reference resolved to its display fields
type CrewMember struct {
	ID       primitive.ObjectID `json:"_id"`
	Username string             `json:"username"`
	Email    string             `json:"email"`
	Role     string             `json:"role"`
}

// VehicleView is the read representation of a vehicle with its crew resolved
type VehicleView struct {
	ID          primitive.ObjectID  `json:"_id"`
	Name        string              `json:"name"`
	Mobile      string              `json:"mobile"`
	Status      VehicleStatus       `json:"status"`
	Location    Coordinate          `json:"location"`
	Destination *Destination        `json:"destination"`
	Mission     *primitive.ObjectID `json:"mission"`
	Crew        []CrewMember        `json:"crew"`
	LastUpdated time.Time           `json:"lastUpdated"`
}
