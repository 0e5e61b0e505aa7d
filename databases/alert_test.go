package databases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/databases/mocks"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

func TestAlertDatabase_InsertOne(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("InsertOne", context.Background(), mock.AnythingOfType("*models.Alert")).
		Return(&mocks.InsertOneResultHelper{}, nil)
	dbHelper.On("Collection", "alerts").Return(collectionHelper)

	alert, err := databases.NewAlertDatabase(dbHelper).InsertOne(context.Background(), &models.Alert{Message: "road closed", Timestamp: time.Now()})
	assert.NoError(t, err)
	assert.False(t, alert.ID.IsZero())
}

func TestAlertDatabase_Find(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Alert)
		*arg = []models.Alert{{Message: "road closed"}}
	})
	collectionHelper.On("Find", context.Background(), bson.M{},
		mock.MatchedBy(func(o *options.FindOptions) bool {
			return *o.Limit == 5 && assert.ObjectsAreEqual(bson.D{{Key: "timestamp", Value: -1}}, o.Sort)
		})).Return(cursorHelper, nil)
	dbHelper.On("Collection", "alerts").Return(collectionHelper)

	alerts, err := databases.NewAlertDatabase(dbHelper).Find(context.Background(), 5, 1)
	assert.NoError(t, err)
	assert.Equal(t, []models.Alert{{Message: "road closed"}}, alerts)
}

func TestUserDatabase_FindByIDs(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	nurse := primitive.NewObjectID()

	cursorHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.User)
		*arg = []models.User{{ID: nurse, Username: "nina", Role: "Nurse"}}
	})
	collectionHelper.On("Find", context.Background(), bson.M{"_id": bson.M{"$in": []primitive.ObjectID{nurse}}}, mock.Anything).
		Return(cursorHelper, nil)
	dbHelper.On("Collection", "users").Return(collectionHelper)

	users, err := databases.NewUserDatabase(dbHelper).FindByIDs(context.Background(), []primitive.ObjectID{nurse})
	assert.NoError(t, err)
	assert.Equal(t, "nina", users[0].Username)
}

func TestUserDatabase_FindByIDsEmpty(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}

	users, err := databases.NewUserDatabase(dbHelper).FindByIDs(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, users)
	dbHelper.AssertNotCalled(t, "Collection", mock.Anything)
}

func TestUserDatabase_FindByIDsError(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("mocked-error"))
	dbHelper.On("Collection", "users").Return(collectionHelper)

	users, err := databases.NewUserDatabase(dbHelper).FindByIDs(context.Background(), []primitive.ObjectID{primitive.NewObjectID()})
	assert.Nil(t, users)
	assert.EqualError(t, err, "mocked-error")
}
