package services_test

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/realtime"
	"github.com/linesmerrill/ambulance-dispatch-api/services"
)

// memVehicles applies guards and updates the way the mongo filters do, under
// one lock so every write is atomic.
type memVehicles struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]models.Vehicle
}

func newMemVehicles() *memVehicles {
	return &memVehicles{docs: make(map[primitive.ObjectID]models.Vehicle)}
}

func cloneVehicle(v models.Vehicle) models.Vehicle {
	v.Crew = append([]primitive.ObjectID{}, v.Crew...)
	return v
}

func (m *memVehicles) InsertOne(_ context.Context, v *models.Vehicle) (*models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.docs {
		if existing.Mobile == v.Mobile {
			return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
		}
	}
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	m.docs[v.ID] = cloneVehicle(*v)
	out := cloneVehicle(*v)
	return &out, nil
}

func (m *memVehicles) FindByID(_ context.Context, id primitive.ObjectID) (*models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.docs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	out := cloneVehicle(v)
	return &out, nil
}

func (m *memVehicles) Find(_ context.Context, f databases.VehicleFilter) ([]models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Vehicle
	for _, v := range m.docs {
		if len(f.IDs) > 0 && !containsID(f.IDs, v.ID) {
			continue
		}
		if f.Status != nil && v.Status != *f.Status {
			continue
		}
		if f.CrewMember != nil && !v.HasCrewMember(*f.CrewMember) {
			continue
		}
		if f.UpdatedBefore != nil && !v.LastUpdated.Before(*f.UpdatedBefore) {
			continue
		}
		out = append(out, cloneVehicle(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func guardMatches(v models.Vehicle, g databases.VehicleGuard) bool {
	if len(g.StatusIn) > 0 {
		ok := false
		for _, s := range g.StatusIn {
			ok = ok || v.Status == s
		}
		if !ok {
			return false
		}
	}
	switch {
	case g.Idle && (v.Destination != nil || v.Mission != nil):
		return false
	case g.NoMission && v.Mission != nil:
		return false
	case g.OnMission && v.Mission == nil:
		return false
	case g.Mission != nil && (v.Mission == nil || *v.Mission != *g.Mission):
		return false
	case g.CrewHas != nil && !v.HasCrewMember(*g.CrewHas):
		return false
	case g.CrewLacks != nil && v.HasCrewMember(*g.CrewLacks):
		return false
	}
	return true
}

func (m *memVehicles) FindOneAndUpdate(_ context.Context, id primitive.ObjectID, g databases.VehicleGuard, u databases.VehicleUpdate) (*models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.docs[id]
	if !ok || !guardMatches(v, g) {
		return nil, mongo.ErrNoDocuments
	}
	if u.Mobile != nil {
		for otherID, other := range m.docs {
			if otherID != id && other.Mobile == *u.Mobile {
				return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
			}
		}
	}
	v = cloneVehicle(v)
	if u.Name != nil {
		v.Name = *u.Name
	}
	if u.Mobile != nil {
		v.Mobile = *u.Mobile
	}
	if u.Status != nil {
		v.Status = *u.Status
	}
	if u.Location != nil {
		v.Location = *u.Location
	}
	if u.Destination != nil {
		d := *u.Destination
		v.Destination = &d
	} else if u.ClearDestination {
		v.Destination = nil
	}
	if u.Mission != nil {
		mid := *u.Mission
		v.Mission = &mid
	} else if u.ClearMission {
		v.Mission = nil
	}
	if u.AddCrew != nil && !v.HasCrewMember(*u.AddCrew) {
		v.Crew = append(v.Crew, *u.AddCrew)
	}
	if u.PullCrew != nil {
		crew := []primitive.ObjectID{}
		for _, c := range v.Crew {
			if c != *u.PullCrew {
				crew = append(crew, c)
			}
		}
		v.Crew = crew
	}
	v.LastUpdated = u.LastUpdated
	m.docs[id] = v
	out := cloneVehicle(v)
	return &out, nil
}

func (m *memVehicles) DeleteOne(_ context.Context, id primitive.ObjectID, g databases.VehicleGuard) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.docs[id]
	if !ok || !guardMatches(v, g) {
		return 0, nil
	}
	delete(m.docs, id)
	return 1, nil
}

func (m *memVehicles) EnsureIndexes(context.Context) error { return nil }

// get returns the stored document, bypassing the interface
func (m *memVehicles) get(id primitive.ObjectID) models.Vehicle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneVehicle(m.docs[id])
}

type memRequests struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]models.Request
}

func newMemRequests() *memRequests {
	return &memRequests{docs: make(map[primitive.ObjectID]models.Request)}
}

func (m *memRequests) InsertOne(_ context.Context, r *models.Request) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	m.docs[r.ID] = *r
	out := *r
	return &out, nil
}

func (m *memRequests) FindByID(_ context.Context, id primitive.ObjectID) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.docs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &r, nil
}

func (m *memRequests) Find(_ context.Context, f databases.RequestFilter) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Request
	for _, r := range m.docs {
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memRequests) Transition(_ context.Context, id primitive.ObjectID, from []models.RequestStatus, u databases.RequestUpdate) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.docs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	matched := false
	for _, s := range from {
		matched = matched || r.Status == s
	}
	if !matched {
		return nil, mongo.ErrNoDocuments
	}
	r.Status = u.Status
	r.UpdatedAt = u.UpdatedAt
	if u.Ambulance != nil {
		a := *u.Ambulance
		r.Ambulance = &a
	}
	if u.PatientLocation != nil {
		loc := *u.PatientLocation
		r.Patient.Location = &loc
	}
	m.docs[id] = r
	return &r, nil
}

func (m *memRequests) EnsureIndexes(context.Context) error { return nil }

func (m *memRequests) all() []models.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Request
	for _, r := range m.docs {
		out = append(out, r)
	}
	return out
}

type memUsers map[primitive.ObjectID]models.User

func (m memUsers) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := m[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type memAlerts struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (m *memAlerts) InsertOne(_ context.Context, a *models.Alert) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = primitive.NewObjectID()
	m.alerts = append(m.alerts, *a)
	return a, nil
}

func (m *memAlerts) Find(context.Context, int64, int64) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Alert{}, m.alerts...), nil
}

type published struct {
	event  realtime.Event
	topics []string
	all    bool
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(ev realtime.Event, topics ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{event: ev, topics: topics})
}

func (p *recordingPublisher) PublishAll(ev realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{event: ev, all: true})
}

func (p *recordingPublisher) named(name string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.event.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// fixture wires every service over in-memory stores
type fixture struct {
	vehicles   *memVehicles
	requests   *memRequests
	users      memUsers
	publisher  *recordingPublisher
	registry   *services.VehicleRegistry
	ledger     *services.RequestLedger
	dispatcher *services.Dispatcher
}

func newFixture() *fixture {
	f := &fixture{
		vehicles:  newMemVehicles(),
		requests:  newMemRequests(),
		users:     memUsers{},
		publisher: &recordingPublisher{},
	}
	f.registry = services.NewVehicleRegistry(f.vehicles, f.users, f.publisher)
	f.ledger = services.NewRequestLedger(f.requests, f.vehicles, f.registry, f.publisher)
	f.dispatcher = services.NewDispatcher(f.requests, f.vehicles, databases.DirectTransactor{}, f.registry, f.ledger, f.publisher)
	return f
}
