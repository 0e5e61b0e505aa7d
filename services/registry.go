package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/realtime"
)

// VehicleInput is the body of a vehicle create
type VehicleInput struct {
	Name        string               `json:"name"`
	Mobile      string               `json:"mobile"`
	Status      models.VehicleStatus `json:"status"`
	Location    *models.Coordinate   `json:"location"`
	Destination *models.Destination  `json:"destination"`
	Crew        []string             `json:"crew"`
}

// VehiclePatch is the body of a vehicle update. Status, destination and crew
// have their own operations.
type VehiclePatch struct {
	Name     *string            `json:"name"`
	Mobile   *string            `json:"mobile"`
	Location *models.Coordinate `json:"location"`
}

// VehicleRegistry owns vehicle records
type VehicleRegistry struct {
	vehicles  databases.VehicleDatabase
	users     databases.UserDatabase
	publisher realtime.Publisher
	now       func() time.Time
}

// NewVehicleRegistry creates a registry over the given stores
func NewVehicleRegistry(vehicles databases.VehicleDatabase, users databases.UserDatabase, publisher realtime.Publisher) *VehicleRegistry {
	return &VehicleRegistry{
		vehicles:  vehicles,
		users:     users,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func parseID(hex, entity string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, ValidationError("invalid %s id %q", entity, hex)
	}
	return id, nil
}

// ParseVehicleStatus validates s against the vehicle status enum
func ParseVehicleStatus(s string) (models.VehicleStatus, error) {
	status := models.VehicleStatus(s)
	if !status.Valid() {
		return "", ValidationError("invalid vehicle status %q", s)
	}
	return status, nil
}

func validLocation(c *models.Coordinate) error {
	if c == nil {
		return ValidationError("location is required")
	}
	if !c.Valid() {
		return ValidationError("latitude and longitude must be numeric and in range")
	}
	return nil
}

// Create registers a new vehicle. New vehicles are never on a mission.
func (r *VehicleRegistry) Create(ctx context.Context, in VehicleInput) (*models.VehicleView, error) {
	name, mobile := strings.TrimSpace(in.Name), strings.TrimSpace(in.Mobile)
	if name == "" {
		return nil, ValidationError("name is required")
	}
	if mobile == "" {
		return nil, ValidationError("mobile is required")
	}
	if err := validLocation(in.Location); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = models.VehicleOffDuty
	}
	if !status.Valid() {
		return nil, ValidationError("invalid vehicle status %q", status)
	}
	if status == models.VehicleOnMission {
		return nil, ConflictError("vehicles are put on a mission by dispatch only")
	}
	if in.Destination != nil {
		return nil, ValidationError("destination is set by dispatch")
	}

	crew := make([]primitive.ObjectID, 0, len(in.Crew))
	seen := make(map[primitive.ObjectID]bool)
	for _, hex := range in.Crew {
		id, err := parseID(hex, "crew member")
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			crew = append(crew, id)
		}
	}

	v, err := r.vehicles.InsertOne(ctx, &models.Vehicle{
		Name:        name,
		Mobile:      mobile,
		Status:      status,
		Location:    *in.Location,
		Crew:        crew,
		LastUpdated: r.now(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil, ConflictError("a vehicle with mobile %s already exists", mobile)
	}
	if err != nil {
		return nil, storeError(err, "vehicle")
	}
	return r.changed(ctx, v), nil
}

// Get returns one vehicle
func (r *VehicleRegistry) Get(ctx context.Context, id string) (*models.VehicleView, error) {
	vid, err := parseID(id, "vehicle")
	if err != nil {
		return nil, err
	}
	v, err := r.vehicles.FindByID(ctx, vid)
	if err != nil {
		return nil, storeError(err, "vehicle")
	}
	return r.View(ctx, v), nil
}

// List returns every vehicle, optionally only those in status
func (r *VehicleRegistry) List(ctx context.Context, status *models.VehicleStatus) ([]models.VehicleView, error) {
	vehicles, err := r.vehicles.Find(ctx, databases.VehicleFilter{Status: status})
	if err != nil {
		return nil, storeError(err, "vehicle")
	}
	return r.Views(ctx, vehicles), nil
}

// ListAvailable returns every vehicle that can take a mission
func (r *VehicleRegistry) ListAvailable(ctx context.Context) ([]models.VehicleView, error) {
	status := models.VehicleAvailable
	return r.List(ctx, &status)
}

// AssignedTo returns the vehicle whose crew includes staffID
func (r *VehicleRegistry) AssignedTo(ctx context.Context, staffID string) (*models.VehicleView, error) {
	sid, err := parseID(staffID, "staff")
	if err != nil {
		return nil, err
	}
	vehicles, err := r.vehicles.Find(ctx, databases.VehicleFilter{CrewMember: &sid})
	if err != nil {
		return nil, storeError(err, "vehicle")
	}
	if len(vehicles) == 0 {
		return nil, NotFoundError("no vehicle assigned")
	}
	return r.View(ctx, &vehicles[0]), nil
}

// Update changes name, mobile or location
func (r *VehicleRegistry) Update(ctx context.Context, id string, patch VehiclePatch) (*models.VehicleView, error) {
	vid, err := parseID(id, "vehicle")
	if err != nil {
		return nil, err
	}
	update := databases.VehicleUpdate{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, ValidationError("name cannot be empty")
		}
		update.Name = &name
	}
	if patch.Mobile != nil {
		mobile := strings.TrimSpace(*patch.Mobile)
		if mobile == "" {
			return nil, ValidationError("mobile cannot be empty")
		}
		update.Mobile = &mobile
	}
	if patch.Location != nil {
		if err := validLocation(patch.Location); err != nil {
			return nil, err
		}
		update.Location = patch.Location
	}
	if update.Name == nil && update.Mobile == nil && update.Location == nil {
		return nil, ValidationError("nothing to update")
	}

	v, err := r.apply(ctx, vid, databases.VehicleGuard{}, update, nil)
	if mongo.IsDuplicateKeyError(err) {
		return nil, ConflictError("a vehicle with mobile %s already exists", *update.Mobile)
	}
	if err != nil {
		return nil, err
	}
	return r.changed(ctx, v), nil
}

// Delete removes a vehicle that is not on a mission
func (r *VehicleRegistry) Delete(ctx context.Context, id string) error {
	vid, err := parseID(id, "vehicle")
	if err != nil {
		return err
	}
	n, err := r.vehicles.DeleteOne(ctx, vid, databases.VehicleGuard{Idle: true})
	if err != nil {
		return storeError(err, "vehicle")
	}
	if n == 1 {
		return nil
	}
	if _, err := r.vehicles.FindByID(ctx, vid); err != nil {
		return storeError(err, "vehicle")
	}
	return ConflictError("vehicle has an active mission")
}

// SetStatus changes the status by hand. ON_MISSION belongs to dispatch, and a
// vehicle only becomes AVAILABLE by hand once its mission has been released.
func (r *VehicleRegistry) SetStatus(ctx context.Context, id string, s string) (*models.VehicleView, error) {
	vid, err := parseID(id, "vehicle")
	if err != nil {
		return nil, err
	}
	status, err := ParseVehicleStatus(s)
	if err != nil {
		return nil, err
	}

	guard := databases.VehicleGuard{}
	var conflict error
	switch status {
	case models.VehicleOnMission:
		return nil, ConflictError("vehicles are put on a mission by dispatch only")
	case models.VehicleAvailable:
		guard.Idle = true
		conflict = ConflictError("vehicle has an active mission")
	}

	v, err := r.apply(ctx, vid, guard, databases.VehicleUpdate{Status: &status}, conflict)
	if err != nil {
		return nil, err
	}
	return r.changed(ctx, v), nil
}

// SetLocation records a position report. A zero at means now.
func (r *VehicleRegistry) SetLocation(ctx context.Context, id string, c models.Coordinate, at time.Time) (*models.VehicleView, error) {
	vid, err := parseID(id, "vehicle")
	if err != nil {
		return nil, err
	}
	if err := validLocation(&c); err != nil {
		return nil, err
	}
	now := r.now()
	if at.IsZero() || at.After(now) {
		at = now
	}

	v, err := r.vehicles.FindOneAndUpdate(ctx, vid, databases.VehicleGuard{}, databases.VehicleUpdate{Location: &c, LastUpdated: at})
	if err != nil {
		return nil, storeError(err, "vehicle")
	}
	r.publisher.Publish(realtime.NewEvent(realtime.EventLocationUpdate, realtime.LocationPayload{
		VehicleID: vid.Hex(),
		Lat:       c.Latitude,
		Lng:       c.Longitude,
		Timestamp: at,
	}), realtime.VehicleAudience(vid.Hex())...)
	return r.View(ctx, v), nil
}

// SetDestination re-routes a vehicle on a mission. nil clears the destination
// of a vehicle that has no mission.
func (r *VehicleRegistry) SetDestination(ctx context.Context, id string, c *models.Coordinate) (*models.VehicleView, error) {
	vid, err := parseID(id, "vehicle")
	if err != nil {
		return nil, err
	}

	var guard databases.VehicleGuard
	var update databases.VehicleUpdate
	var conflict error
	if c != nil {
		if !c.Valid() {
			return nil, ValidationError("latitude and longitude must be numeric and in range")
		}
		guard.OnMission = true
		update.Destination = models.NewDestination(*c)
		conflict = ConflictError("vehicle has no active mission")
	} else {
		guard.NoMission = true
		update.ClearDestination = true
		conflict = ConflictError("vehicle has an active mission")
	}

	v, err := r.apply(ctx, vid, guard, update, conflict)
	if err != nil {
		return nil, err
	}
	r.publisher.Publish(realtime.NewEvent(realtime.EventDestinationUpdate,
		realtime.NewDestinationPayload(vid.Hex(), v.Destination)), realtime.VehicleAudience(vid.Hex())...)
	return r.View(ctx, v), nil
}

// AddCrewMember adds staffID to the crew
func (r *VehicleRegistry) AddCrewMember(ctx context.Context, id, staffID string) (*models.VehicleView, error) {
	vid, err := parseID(id, "vehicle")
	if err != nil {
		return nil, err
	}
	sid, err := parseID(staffID, "staff")
	if err != nil {
		return nil, err
	}
	v, err := r.apply(ctx, vid, databases.VehicleGuard{CrewLacks: &sid}, databases.VehicleUpdate{AddCrew: &sid},
		ValidationError("staff member is already on the crew"))
	if err != nil {
		return nil, err
	}
	return r.changed(ctx, v), nil
}

// RemoveCrewMember removes staffID from the crew
func (r *VehicleRegistry) RemoveCrewMember(ctx context.Context, id, staffID string) (*models.VehicleView, error) {
	vid, err := parseID(id, "vehicle")
	if err != nil {
		return nil, err
	}
	sid, err := parseID(staffID, "staff")
	if err != nil {
		return nil, err
	}
	v, err := r.apply(ctx, vid, databases.VehicleGuard{CrewHas: &sid}, databases.VehicleUpdate{PullCrew: &sid},
		ValidationError("staff member is not on the crew"))
	if err != nil {
		return nil, err
	}
	return r.changed(ctx, v), nil
}

// apply runs a guarded write. When the guard does not match, a missing vehicle
// becomes NotFound and anything else becomes conflict.
func (r *VehicleRegistry) apply(ctx context.Context, id primitive.ObjectID, guard databases.VehicleGuard, update databases.VehicleUpdate, conflict error) (*models.Vehicle, error) {
	update.LastUpdated = r.now()
	v, err := r.vehicles.FindOneAndUpdate(ctx, id, guard, update)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) || conflict == nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
		return nil, storeError(err, "vehicle")
	}
	if _, ferr := r.vehicles.FindByID(ctx, id); ferr != nil {
		return nil, storeError(ferr, "vehicle")
	}
	return nil, conflict
}

// changed publishes vehicleUpdate and returns the view
func (r *VehicleRegistry) changed(ctx context.Context, v *models.Vehicle) *models.VehicleView {
	view := r.View(ctx, v)
	r.publisher.Publish(realtime.NewEvent(realtime.EventVehicleUpdate, view), realtime.VehicleAudience(v.ID.Hex())...)
	return view
}

// View resolves the crew of v. A failed lookup leaves the crew as bare ids.
func (r *VehicleRegistry) View(ctx context.Context, v *models.Vehicle) *models.VehicleView {
	views := r.Views(ctx, []models.Vehicle{*v})
	return &views[0]
}

// Views resolves the crews of vehicles with a single user lookup
func (r *VehicleRegistry) Views(ctx context.Context, vehicles []models.Vehicle) []models.VehicleView {
	var ids []primitive.ObjectID
	for _, v := range vehicles {
		ids = append(ids, v.Crew...)
	}
	users := make(map[primitive.ObjectID]models.User)
	if len(ids) > 0 {
		found, err := r.users.FindByIDs(ctx, ids)
		if err != nil {
			zap.S().Warnw("failed to resolve crew", "error", err)
		}
		for _, u := range found {
			users[u.ID] = u
		}
	}

	views := make([]models.VehicleView, 0, len(vehicles))
	for _, v := range vehicles {
		crew := make([]models.CrewMember, 0, len(v.Crew))
		for _, id := range v.Crew {
			u := users[id]
			crew = append(crew, models.CrewMember{ID: id, Username: u.Username, Email: u.Email, Role: u.Role})
		}
		views = append(views, models.VehicleView{
			ID:          v.ID,
			Name:        v.Name,
			Mobile:      v.Mobile,
			Status:      v.Status,
			Location:    v.Location,
			Destination: v.Destination,
			Mission:     v.Mission,
			Crew:        crew,
			LastUpdated: v.LastUpdated,
		})
	}
	return views
}
