package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/realtime"
)

var phonePattern = regexp.MustCompile(`^[0-9]{8,15}$`)

// RequestInput is the body of a public request submission
type RequestInput struct {
	Patient       models.Patient       `json:"patient"`
	EmergencyType models.EmergencyType `json:"emergencyType"`
	Description   string               `json:"description"`
}

// RequestQuery filters a request listing
type RequestQuery struct {
	Status string
	Limit  int64
	Page   int64
}

// RequestLedger owns request records. Status changes go through the Dispatcher.
type RequestLedger struct {
	requests  databases.RequestDatabase
	vehicles  databases.VehicleDatabase
	registry  *VehicleRegistry
	publisher realtime.Publisher
	now       func() time.Time
}

// NewRequestLedger creates a ledger over the given stores
func NewRequestLedger(requests databases.RequestDatabase, vehicles databases.VehicleDatabase, registry *VehicleRegistry, publisher realtime.Publisher) *RequestLedger {
	return &RequestLedger{
		requests:  requests,
		vehicles:  vehicles,
		registry:  registry,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ParseRequestStatus validates s against the request status enum
func ParseRequestStatus(s string) (models.RequestStatus, error) {
	status := models.RequestStatus(s)
	if !status.Valid() {
		return "", ValidationError("invalid request status %q", s)
	}
	return status, nil
}

// Create persists a PENDING request and notifies dispatch staff
func (l *RequestLedger) Create(ctx context.Context, in RequestInput) (*models.Request, error) {
	name := strings.TrimSpace(in.Patient.Name)
	if name == "" {
		return nil, ValidationError("patient name is required")
	}
	if !phonePattern.MatchString(in.Patient.Phone) {
		return nil, ValidationError("patient phone must be 8 to 15 digits")
	}
	if !in.EmergencyType.Valid() {
		return nil, ValidationError("invalid emergency type %q", in.EmergencyType)
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, ValidationError("description is required")
	}
	if in.Patient.Location != nil && !in.Patient.Location.Valid() {
		return nil, ValidationError("latitude and longitude must be numeric and in range")
	}

	now := l.now()
	req, err := l.requests.InsertOne(ctx, &models.Request{
		Patient: models.Patient{
			Name:     name,
			Phone:    in.Patient.Phone,
			Location: in.Patient.Location,
		},
		Status:        models.RequestPending,
		EmergencyType: in.EmergencyType,
		Description:   description,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, storeError(err, "request")
	}

	l.publisher.Publish(realtime.NewEvent(realtime.EventNewRequest, req), realtime.StaffTopics()...)
	return req, nil
}

// Get returns one request with its vehicle populated
func (l *RequestLedger) Get(ctx context.Context, id string) (*models.RequestView, error) {
	rid, err := parseID(id, "request")
	if err != nil {
		return nil, err
	}
	req, err := l.requests.FindByID(ctx, rid)
	if err != nil {
		return nil, storeError(err, "request")
	}
	views, err := l.Views(ctx, []models.Request{*req})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List returns requests newest first, each with its vehicle populated
func (l *RequestLedger) List(ctx context.Context, q RequestQuery) ([]models.RequestView, error) {
	filter := databases.RequestFilter{Limit: q.Limit, Page: q.Page}
	if q.Status != "" {
		status, err := ParseRequestStatus(q.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = &status
	}
	requests, err := l.requests.Find(ctx, filter)
	if err != nil {
		return nil, storeError(err, "request")
	}
	return l.Views(ctx, requests)
}

// Views populates the vehicles of requests with one vehicle lookup
func (l *RequestLedger) Views(ctx context.Context, requests []models.Request) ([]models.RequestView, error) {
	var ids []primitive.ObjectID
	for _, r := range requests {
		if r.Ambulance != nil {
			ids = append(ids, *r.Ambulance)
		}
	}
	vehicles := make(map[primitive.ObjectID]models.VehicleView)
	if len(ids) > 0 {
		found, err := l.vehicles.Find(ctx, databases.VehicleFilter{IDs: ids})
		if err != nil {
			return nil, storeError(err, "vehicle")
		}
		for _, v := range l.registry.Views(ctx, found) {
			vehicles[v.ID] = v
		}
	}

	views := make([]models.RequestView, 0, len(requests))
	for _, r := range requests {
		view := models.RequestView{Request: r}
		if r.Ambulance != nil {
			if v, ok := vehicles[*r.Ambulance]; ok {
				view.Ambulance = &v
			}
		}
		views = append(views, view)
	}
	return views, nil
}
