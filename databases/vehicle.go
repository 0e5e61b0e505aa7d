package databases

// go generate: mockery --name VehicleDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

const vehicleName = "vehicles"

// VehicleGuard narrows a write to vehicles in a given state. The zero value
// matches on _id alone. Idle means no destination and no mission.
type VehicleGuard struct {
	StatusIn  []models.VehicleStatus
	Idle      bool
	NoMission bool
	OnMission bool
	Mission   *primitive.ObjectID
	CrewHas   *primitive.ObjectID
	CrewLacks *primitive.ObjectID
}

// VehicleUpdate describes the fields a single write changes. Nil fields are left untouched.
type VehicleUpdate struct {
	Name             *string
	Mobile           *string
	Status           *models.VehicleStatus
	Location         *models.Coordinate
	Destination      *models.Destination
	ClearDestination bool
	Mission          *primitive.ObjectID
	ClearMission     bool
	AddCrew          *primitive.ObjectID
	PullCrew         *primitive.ObjectID
	LastUpdated      time.Time
}

// VehicleFilter selects vehicles for a listing
type VehicleFilter struct {
	IDs           []primitive.ObjectID
	Status        *models.VehicleStatus
	CrewMember    *primitive.ObjectID
	UpdatedBefore *time.Time
}

// VehicleDatabase contains the methods to use with the vehicle database
type VehicleDatabase interface {
	InsertOne(context.Context, *models.Vehicle) (*models.Vehicle, error)
	FindByID(context.Context, primitive.ObjectID) (*models.Vehicle, error)
	Find(context.Context, VehicleFilter) ([]models.Vehicle, error)
	FindOneAndUpdate(context.Context, primitive.ObjectID, VehicleGuard, VehicleUpdate) (*models.Vehicle, error)
	DeleteOne(context.Context, primitive.ObjectID, VehicleGuard) (int64, error)
	EnsureIndexes(context.Context) error
}

type vehicleDatabase struct {
	db DatabaseHelper
}

// NewVehicleDatabase initializes a new instance of vehicle database with the provided db connection
func NewVehicleDatabase(db DatabaseHelper) VehicleDatabase {
	return &vehicleDatabase{
		db: db,
	}
}

// Filter builds the mongo filter for the vehicle with the given id
func (g VehicleGuard) Filter(id primitive.ObjectID) bson.M {
	filter := bson.M{"_id": id}
	if len(g.StatusIn) == 1 {
		filter["status"] = g.StatusIn[0]
	} else if len(g.StatusIn) > 1 {
		filter["status"] = bson.M{"$in": g.StatusIn}
	}
	switch {
	case g.Idle:
		filter["destination"] = nil
		filter["mission"] = nil
	case g.NoMission:
		filter["mission"] = nil
	case g.OnMission:
		filter["mission"] = bson.M{"$ne": nil}
	case g.Mission != nil:
		filter["mission"] = *g.Mission
	}
	switch {
	case g.CrewHas != nil:
		filter["crew"] = *g.CrewHas
	case g.CrewLacks != nil:
		filter["crew"] = bson.M{"$ne": *g.CrewLacks}
	}
	return filter
}

// Document builds the mongo update document
func (u VehicleUpdate) Document() bson.M {
	set := bson.M{"lastUpdated": u.LastUpdated}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Mobile != nil {
		set["mobile"] = *u.Mobile
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.Location != nil {
		set["location"] = *u.Location
	}
	if u.Destination != nil {
		set["destination"] = *u.Destination
	} else if u.ClearDestination {
		set["destination"] = nil
	}
	if u.Mission != nil {
		set["mission"] = *u.Mission
	} else if u.ClearMission {
		set["mission"] = nil
	}
	update := bson.M{"$set": set}
	if u.AddCrew != nil {
		update["$addToSet"] = bson.M{"crew": *u.AddCrew}
	}
	if u.PullCrew != nil {
		update["$pull"] = bson.M{"crew": *u.PullCrew}
	}
	return update
}

// Filter builds the mongo filter for a vehicle listing
func (f VehicleFilter) Filter() bson.M {
	filter := bson.M{}
	if len(f.IDs) > 0 {
		filter["_id"] = bson.M{"$in": f.IDs}
	}
	if f.Status != nil {
		filter["status"] = *f.Status
	}
	if f.CrewMember != nil {
		filter["crew"] = *f.CrewMember
	}
	if f.UpdatedBefore != nil {
		filter["lastUpdated"] = bson.M{"$lt": *f.UpdatedBefore}
	}
	return filter
}

func (v *vehicleDatabase) InsertOne(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error) {
	if vehicle.ID.IsZero() {
		vehicle.ID = primitive.NewObjectID()
	}
	if vehicle.Crew == nil {
		vehicle.Crew = []primitive.ObjectID{}
	}
	_, err := v.db.Collection(vehicleName).InsertOne(ctx, vehicle)
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (v *vehicleDatabase) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Vehicle, error) {
	vehicle := &models.Vehicle{}
	err := v.db.Collection(vehicleName).FindOne(ctx, bson.M{"_id": id}).Decode(&vehicle)
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (v *vehicleDatabase) Find(ctx context.Context, f VehicleFilter) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cr, err := v.db.Collection(vehicleName).Find(ctx, f.Filter(), opts)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&vehicles)
	if err != nil {
		return nil, err
	}
	return vehicles, nil
}

// FindOneAndUpdate applies update only when the vehicle still satisfies guard and
// returns the updated document. mongo.ErrNoDocuments means the guard did not match.
func (v *vehicleDatabase) FindOneAndUpdate(ctx context.Context, id primitive.ObjectID, guard VehicleGuard, update VehicleUpdate) (*models.Vehicle, error) {
	vehicle := &models.Vehicle{}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := v.db.Collection(vehicleName).FindOneAndUpdate(ctx, guard.Filter(id), update.Document(), opts).Decode(&vehicle)
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (v *vehicleDatabase) DeleteOne(ctx context.Context, id primitive.ObjectID, guard VehicleGuard) (int64, error) {
	return v.db.Collection(vehicleName).DeleteOne(ctx, guard.Filter(id))
}

func (v *vehicleDatabase) EnsureIndexes(ctx context.Context) error {
	return v.db.Collection(vehicleName).CreateIndexes(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "mobile", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "crew", Value: 1}}},
	})
}
