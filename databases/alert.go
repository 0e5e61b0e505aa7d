package databases

// go generate: mockery --name AlertDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

const alertName = "alerts"

// AlertDatabase contains the methods to use with the alert database
type AlertDatabase interface {
	InsertOne(context.Context, *models.Alert) (*models.Alert, error)
	Find(ctx context.Context, limit, page int64) ([]models.Alert, error)
}

type alertDatabase struct {
	db DatabaseHelper
}

// NewAlertDatabase initializes a new instance of alert database with the provided db connection
func NewAlertDatabase(db DatabaseHelper) AlertDatabase {
	return &alertDatabase{
		db: db,
	}
}

func (a *alertDatabase) InsertOne(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	if alert.ID.IsZero() {
		alert.ID = primitive.NewObjectID()
	}
	_, err := a.db.Collection(alertName).InsertOne(ctx, alert)
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func (a *alertDatabase) Find(ctx context.Context, limit, page int64) ([]models.Alert, error) {
	var alerts []models.Alert
	opts := newMongoPaginate(limit, page).getPaginatedOpts()
	opts.SetSort(newestFirst("timestamp"))
	cr, err := a.db.Collection(alertName).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&alerts)
	if err != nil {
		return nil, err
	}
	return alerts, nil
}
