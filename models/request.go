package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestStatus is the lifecycle state of an ambulance request
type RequestStatus string

// Request statuses
const (
	RequestPending    RequestStatus = "PENDING"
	RequestAccepted   RequestStatus = "ACCEPTED"
	RequestInProgress RequestStatus = "IN_PROGRESS"
	RequestCompleted  RequestStatus = "COMPLETED"
	RequestCancelled  RequestStatus = "CANCELLED"
)

// RequestStatuses lists every accepted request status
var RequestStatuses = []RequestStatus{RequestPending, RequestAccepted, RequestInProgress, RequestCompleted, RequestCancelled}

// Valid reports whether s is one of RequestStatuses
func (s RequestStatus) Valid() bool {
	for _, v := range RequestStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s
func (s RequestStatus) Terminal() bool {
	return s == RequestCompleted || s == RequestCancelled
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:    {RequestAccepted, RequestCancelled},
	RequestAccepted:   {RequestInProgress, RequestCompleted, RequestCancelled},
	RequestInProgress: {RequestCompleted, RequestCancelled},
}

// CanTransitionTo reports whether next is reachable from s in one step
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, v := range requestTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// EmergencyType grades the urgency of a request
type EmergencyType string

// Emergency types
const (
	EmergencyCritical  EmergencyType = "CRITICAL"
	EmergencyUrgent    EmergencyType = "URGENT"
	EmergencyNonUrgent EmergencyType = "NON_URGENT"
)

// Valid reports whether t is a known emergency type
func (t EmergencyType) Valid() bool {
	return t == EmergencyCritical || t == EmergencyUrgent || t == EmergencyNonUrgent
}

// Patient holds the caller details of a request
type Patient struct {
	Name     string      `json:"name" bson:"name"`
	Phone    string      `json:"phone" bson:"phone"`
	Location *Coordinate `json:"location,omitempty" bson:"location,omitempty"`
}

// Request holds the structure for the ambulancerequests collection in mongo
type Request struct {
	ID            primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	Patient       Patient             `json:"patient" bson:"patient"`
	Ambulance     *primitive.ObjectID `json:"ambulance" bson:"ambulance"`
	Status        RequestStatus       `json:"status" bson:"status"`
	EmergencyType EmergencyType       `json:"emergencyType" bson:"emergencyType"`
	Description   string              `json:"description" bson:"description"`
	CreatedAt     time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// RequestView is a request with its attached vehicle populated
type RequestView struct {
	Request
	Ambulance *VehicleView `json:"ambulance"`
}
