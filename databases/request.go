package databases

// go generate: mockery --name RequestDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

const requestName = "ambulancerequests"

// RequestFilter selects requests for a listing
type RequestFilter struct {
	Status *models.RequestStatus
	Limit  int64
	Page   int64
}

// RequestUpdate is the change applied by a status transition
type RequestUpdate struct {
	Status          models.RequestStatus
	Ambulance       *primitive.ObjectID
	PatientLocation *models.Coordinate
	UpdatedAt       time.Time
}

// RequestDatabase contains the methods to use with the ambulance request database
type RequestDatabase interface {
	InsertOne(context.Context, *models.Request) (*models.Request, error)
	FindByID(context.Context, primitive.ObjectID) (*models.Request, error)
	Find(context.Context, RequestFilter) ([]models.Request, error)
	Transition(context.Context, primitive.ObjectID, []models.RequestStatus, RequestUpdate) (*models.Request, error)
	EnsureIndexes(context.Context) error
}

type requestDatabase struct {
	db DatabaseHelper
}

// NewRequestDatabase initializes a new instance of request database with the provided db connection
func NewRequestDatabase(db DatabaseHelper) RequestDatabase {
	return &requestDatabase{
		db: db,
	}
}

// Filter builds the mongo filter for a request listing
func (f RequestFilter) Filter() bson.M {
	filter := bson.M{}
	if f.Status != nil {
		filter["status"] = *f.Status
	}
	return filter
}

// TransitionFilter matches the request only while it is in one of from
func TransitionFilter(id primitive.ObjectID, from []models.RequestStatus) bson.M {
	filter := bson.M{"_id": id}
	if len(from) == 1 {
		filter["status"] = from[0]
	} else {
		filter["status"] = bson.M{"$in": from}
	}
	return filter
}

// Document builds the mongo update document
func (u RequestUpdate) Document() bson.M {
	set := bson.M{
		"status":    u.Status,
		"updatedAt": u.UpdatedAt,
	}
	if u.Ambulance != nil {
		set["ambulance"] = *u.Ambulance
	}
	if u.PatientLocation != nil {
		set["patient.location"] = *u.PatientLocation
	}
	return bson.M{"$set": set}
}

func (r *requestDatabase) InsertOne(ctx context.Context, request *models.Request) (*models.Request, error) {
	if request.ID.IsZero() {
		request.ID = primitive.NewObjectID()
	}
	_, err := r.db.Collection(requestName).InsertOne(ctx, request)
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (r *requestDatabase) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Request, error) {
	request := &models.Request{}
	err := r.db.Collection(requestName).FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (r *requestDatabase) Find(ctx context.Context, f RequestFilter) ([]models.Request, error) {
	var requests []models.Request
	opts := newMongoPaginate(f.Limit, f.Page).getPaginatedOpts()
	opts.SetSort(newestFirst("createdAt"))
	cr, err := r.db.Collection(requestName).Find(ctx, f.Filter(), opts)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&requests)
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// Transition moves the request to update.Status only if it is currently in one
// of from. mongo.ErrNoDocuments means the request is missing or has moved on.
func (r *requestDatabase) Transition(ctx context.Context, id primitive.ObjectID, from []models.RequestStatus, update RequestUpdate) (*models.Request, error) {
	request := &models.Request{}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.db.Collection(requestName).FindOneAndUpdate(ctx, TransitionFilter(id, from), update.Document(), opts).Decode(&request)
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (r *requestDatabase) EnsureIndexes(ctx context.Context) error {
	return r.db.Collection(requestName).CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "ambulance", Value: 1}}},
	})
}
