package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

func TestVehicle_CreateVehicleHandler(t *testing.T) {
	ta := newTestApp(t)
	id := primitive.NewObjectID()
	ta.vdb.On("InsertOne", mock.Anything, mock.MatchedBy(func(v *models.Vehicle) bool {
		return v.Name == "Medic 1" && v.Status == models.VehicleAvailable && v.Destination == nil
	})).Return(func(_ context.Context, v *models.Vehicle) *models.Vehicle {
		v.ID = id
		return v
	}, nil).Once()

	rr := ta.do(t, http.MethodPost, "/api/v1/vehicles",
		`{"name":"Medic 1","mobile":"0600000001","status":"AVAILABLE","location":{"latitude":43.3,"longitude":5.4}}`,
		models.RoleAdministrator)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var view models.VehicleView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, id, view.ID)
	assert.Equal(t, models.VehicleAvailable, view.Status)
	assert.Nil(t, view.Destination)
	assert.Empty(t, view.Crew)
}

func TestVehicle_CreateVehicleHandlerRoles(t *testing.T) {
	ta := newTestApp(t)
	body := `{"name":"Medic 1","mobile":"0600000001","location":{"latitude":1,"longitude":1}}`

	rr := ta.do(t, http.MethodPost, "/api/v1/vehicles", body, models.RoleDoctor)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"message":"insufficient role"}`, rr.Body.String())

	rr = ta.do(t, http.MethodPost, "/api/v1/vehicles", body, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestVehicle_CreateVehicleHandlerValidation(t *testing.T) {
	ta := newTestApp(t)
	tests := map[string]string{
		"malformed":  `{"name":`,
		"empty":      ``,
		"no name":    `{"mobile":"1","location":{"latitude":1,"longitude":1}}`,
		"on mission": `{"name":"a","mobile":"1","status":"ON_MISSION","location":{"latitude":1,"longitude":1}}`,
		"bad status": `{"name":"a","mobile":"1","status":"BROKEN","location":{"latitude":1,"longitude":1}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rr := ta.do(t, http.MethodPost, "/api/v1/vehicles", body, models.RoleAdministrator)
			assert.Contains(t, []int{http.StatusBadRequest, http.StatusConflict}, rr.Code, rr.Body.String())
		})
	}
}

func TestVehicle_VehicleByIDHandler(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, http.MethodGet, "/api/v1/vehicles/1234", "", models.RoleNurse)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"message":"failed to get vehicle by ID","error":"invalid vehicle id \"1234\""}`, rr.Body.String())

	missing := primitive.NewObjectID()
	ta.vdb.On("FindByID", mock.Anything, missing).Return(nil, mongo.ErrNoDocuments).Once()
	rr = ta.do(t, http.MethodGet, "/api/v1/vehicles/"+missing.Hex(), "", models.RoleNurse)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"message":"failed to get vehicle by ID","error":"vehicle not found"}`, rr.Body.String())

	v := availableVehicle()
	ta.vdb.On("FindByID", mock.Anything, v.ID).Return(v, nil).Once()
	rr = ta.do(t, http.MethodGet, "/api/v1/vehicles/"+v.ID.Hex(), "", models.RoleDoctor)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"destination":null`)
}

func TestVehicle_VehiclesHandler(t *testing.T) {
	ta := newTestApp(t)
	v := availableVehicle()
	ta.vdb.On("Find", mock.Anything, mock.MatchedBy(func(f databases.VehicleFilter) bool {
		return f.Status != nil && *f.Status == models.VehicleAvailable
	})).Return([]models.Vehicle{*v}, nil).Twice()

	for _, path := range []string{"/api/v1/vehicles?status=AVAILABLE", "/api/v1/vehicles/status/available"} {
		rr := ta.do(t, http.MethodGet, path, "", models.RoleNurse)
		require.Equal(t, http.StatusOK, rr.Code, path)
		var views []models.VehicleView
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
		require.Len(t, views, 1)
		assert.Equal(t, v.ID, views[0].ID)
	}

	rr := ta.do(t, http.MethodGet, "/api/v1/vehicles?status=PARKED", "", models.RoleNurse)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVehicle_AssignedVehicleHandler(t *testing.T) {
	ta := newTestApp(t)
	v := availableVehicle()
	v.Crew = []primitive.ObjectID{staffID}
	ta.vdb.On("Find", mock.Anything, mock.MatchedBy(func(f databases.VehicleFilter) bool {
		return f.CrewMember != nil && *f.CrewMember == staffID
	})).Return([]models.Vehicle{*v}, nil).Once()
	ta.udb.On("FindByIDs", mock.Anything, []primitive.ObjectID{staffID}).
		Return([]models.User{{ID: staffID, Username: "nina", Role: "Nurse"}}, nil).Once()

	rr := ta.do(t, http.MethodGet, "/api/v1/vehicles/assigned", "", models.RoleNurse)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var view models.VehicleView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.Len(t, view.Crew, 1)
	assert.Equal(t, "nina", view.Crew[0].Username)

	rr = ta.do(t, http.MethodGet, "/api/v1/vehicles/assigned", "", models.RoleDoctor)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestVehicle_VehicleStatusHandler(t *testing.T) {
	ta := newTestApp(t)
	v := availableVehicle()

	rr := ta.do(t, http.MethodPut, "/api/v1/vehicles/"+v.ID.Hex()+"/status", `{"status":"BUSY"}`, models.RoleNurse)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"message":"failed to update vehicle status","error":"invalid vehicle status \"BUSY\""}`, rr.Body.String())

	rr = ta.do(t, http.MethodPut, "/api/v1/vehicles/"+v.ID.Hex()+"/status", `{"status":"ON_MISSION"}`, models.RoleNurse)
	assert.Equal(t, http.StatusConflict, rr.Code)

	maintenance := *v
	maintenance.Status = models.VehicleMaintenance
	ta.vdb.On("FindOneAndUpdate", mock.Anything, v.ID, databases.VehicleGuard{}, mock.MatchedBy(func(u databases.VehicleUpdate) bool {
		return u.Status != nil && *u.Status == models.VehicleMaintenance
	})).Return(&maintenance, nil).Once()

	rr = ta.do(t, http.MethodPut, "/api/v1/vehicles/"+v.ID.Hex()+"/status", `{"status":"MAINTENANCE"}`, models.RoleDoctor)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp struct {
		Message   string             `json:"message"`
		Ambulance models.VehicleView `json:"ambulance"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "vehicle status updated to MAINTENANCE", resp.Message)
	assert.Equal(t, models.VehicleMaintenance, resp.Ambulance.Status)
}

func TestVehicle_VehicleLocationHandler(t *testing.T) {
	ta := newTestApp(t)
	v := availableVehicle()

	rr := ta.do(t, http.MethodPut, "/api/v1/vehicles/"+v.ID.Hex()+"/location", `{"latitude":43.3}`, models.RoleNurse)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ta.do(t, http.MethodPut, "/api/v1/vehicles/"+v.ID.Hex()+"/location", `{"latitude":143.3,"longitude":5}`, models.RoleNurse)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	moved := *v
	moved.Location = models.Coordinate{Latitude: 43.31, Longitude: 5.41}
	ta.vdb.On("FindOneAndUpdate", mock.Anything, v.ID, databases.VehicleGuard{}, mock.MatchedBy(func(u databases.VehicleUpdate) bool {
		return u.Location != nil && *u.Location == moved.Location
	})).Return(&moved, nil).Once()

	rr = ta.do(t, http.MethodPut, "/api/v1/vehicles/"+v.ID.Hex()+"/location", `{"latitude":43.31,"longitude":5.41}`, models.RoleNurse)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"message":"vehicle location updated"`)
}

func TestVehicle_VehicleDestinationHandler(t *testing.T) {
	ta := newTestApp(t)
	v := availableVehicle()
	path := "/api/v1/vehicles/" + v.ID.Hex() + "/destination"

	// clearing the destination of an idle vehicle
	ta.vdb.On("FindOneAndUpdate", mock.Anything, v.ID, databases.VehicleGuard{NoMission: true}, mock.MatchedBy(func(u databases.VehicleUpdate) bool {
		return u.ClearDestination
	})).Return(v, nil).Once()
	rr := ta.do(t, http.MethodPut, path, `null`, models.RoleNurse)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// geocoded re-route of a vehicle on a mission
	onMission := *v
	onMission.Status = models.VehicleOnMission
	onMission.Destination = models.NewDestination(models.Coordinate{Latitude: 43.38, Longitude: 5.36})
	ta.vdb.On("FindOneAndUpdate", mock.Anything, v.ID, databases.VehicleGuard{OnMission: true}, mock.MatchedBy(func(u databases.VehicleUpdate) bool {
		return u.Destination != nil && u.Destination.String() == "43.38,5.36"
	})).Return(&onMission, nil).Twice()

	rr = ta.do(t, http.MethodPut, path, `{"query":"Hôpital Nord"}`, models.RoleDoctor)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"destination":"43.38,5.36"`)

	rr = ta.do(t, http.MethodPut, path, `{"latitude":43.38,"longitude":5.36}`, models.RoleDoctor)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ta.do(t, http.MethodPut, path, `{"query":"nowhere"}`, models.RoleDoctor)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ta.do(t, http.MethodPut, path, `{}`, models.RoleDoctor)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVehicle_VehicleETAHandler(t *testing.T) {
	ta := newTestApp(t)
	v := availableVehicle()
	v.Status = models.VehicleOnMission
	v.Location = models.Coordinate{Latitude: 0, Longitude: 0}
	v.Destination = models.NewDestination(models.Coordinate{Latitude: 0, Longitude: 1})
	ta.vdb.On("FindByID", mock.Anything, v.ID).Return(v, nil).Once()

	rr := ta.do(t, http.MethodGet, "/api/v1/vehicles/"+v.ID.Hex()+"/eta", "", models.RoleDoctor)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var estimate struct {
		DistanceMeters float64 `json:"distanceMeters"`
		Source         string  `json:"source"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &estimate))
	assert.InDelta(t, 111195, estimate.DistanceMeters, 100)
	assert.Equal(t, "haversine", estimate.Source)
}

func TestVehicle_CrewHandlers(t *testing.T) {
	ta := newTestApp(t)
	v := availableVehicle()
	member := primitive.NewObjectID()
	crewed := *v
	crewed.Crew = []primitive.ObjectID{member}

	ta.vdb.On("FindOneAndUpdate", mock.Anything, v.ID, databases.VehicleGuard{CrewLacks: &member}, mock.Anything).Return(&crewed, nil).Once()
	ta.udb.On("FindByIDs", mock.Anything, []primitive.ObjectID{member}).Return([]models.User{}, nil).Once()

	rr := ta.do(t, http.MethodPost, "/api/v1/vehicles/"+v.ID.Hex()+"/crew", `{"userId":"`+member.Hex()+`"}`, models.RoleAdministrator)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), member.Hex())

	ta.vdb.On("FindOneAndUpdate", mock.Anything, v.ID, databases.VehicleGuard{CrewHas: &member}, mock.Anything).Return(nil, mongo.ErrNoDocuments).Once()
	ta.vdb.On("FindByID", mock.Anything, v.ID).Return(v, nil).Once()

	rr = ta.do(t, http.MethodDelete, "/api/v1/vehicles/"+v.ID.Hex()+"/crew/"+member.Hex(), "", models.RoleAdministrator)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"message":"failed to remove crew member","error":"staff member is not on the crew"}`, rr.Body.String())
}

func TestVehicle_DeleteVehicleHandler(t *testing.T) {
	ta := newTestApp(t)
	v := availableVehicle()

	ta.vdb.On("DeleteOne", mock.Anything, v.ID, databases.VehicleGuard{Idle: true}).Return(int64(0), nil).Once()
	ta.vdb.On("FindByID", mock.Anything, v.ID).Return(v, nil).Once()
	rr := ta.do(t, http.MethodDelete, "/api/v1/vehicles/"+v.ID.Hex(), "", models.RoleAdministrator)
	assert.Equal(t, http.StatusConflict, rr.Code)

	ta.vdb.On("DeleteOne", mock.Anything, v.ID, databases.VehicleGuard{Idle: true}).Return(int64(1), nil).Once()
	rr = ta.do(t, http.MethodDelete, "/api/v1/vehicles/"+v.ID.Hex(), "", models.RoleAdministrator)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"vehicle deleted"}`, rr.Body.String())
}
