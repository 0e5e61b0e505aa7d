package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseCoordinate(t *testing.T) {
	c, err := ParseCoordinate(" 10 , 20.5 ")
	require.NoError(t, err)
	assert.Equal(t, Coordinate{Latitude: 10, Longitude: 20.5}, c)
	assert.Equal(t, "10,20.5", c.String())

	for _, in := range []string{"", "10", "10,20,30", "a,b", "91,0", "0,181", "NaN,0"} {
		_, err := ParseCoordinate(in)
		assert.ErrorIs(t, err, ErrInvalidCoordinate, in)
	}
}

func TestCoordinateValid(t *testing.T) {
	assert.True(t, Coordinate{Latitude: -90, Longitude: 180}.Valid())
	assert.False(t, Coordinate{Latitude: math.Inf(1), Longitude: 0}.Valid())
	assert.False(t, Coordinate{Latitude: 0, Longitude: math.NaN()}.Valid())
}

func TestDestinationJSON(t *testing.T) {
	v := Vehicle{Destination: NewDestination(Coordinate{Latitude: 10, Longitude: 20})}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"destination":"10,20"`)

	b, err = json.Marshal(Vehicle{})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"destination":null`)

	var d Destination
	require.NoError(t, json.Unmarshal([]byte(`{"latitude":1.5,"longitude":2}`), &d))
	assert.Equal(t, "1.5,2", d.String())
	assert.Error(t, json.Unmarshal([]byte(`"north"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`{"latitude":100,"longitude":2}`), &d))
}

func TestRequestStatusTransitions(t *testing.T) {
	assert.True(t, RequestPending.CanTransitionTo(RequestAccepted))
	assert.True(t, RequestAccepted.CanTransitionTo(RequestCompleted))
	assert.True(t, RequestInProgress.CanTransitionTo(RequestCancelled))
	assert.False(t, RequestPending.CanTransitionTo(RequestCompleted))
	assert.False(t, RequestCompleted.CanTransitionTo(RequestCancelled))
	assert.False(t, RequestCancelled.CanTransitionTo(RequestPending))

	assert.True(t, RequestCompleted.Terminal())
	assert.False(t, RequestInProgress.Terminal())
}

func TestEnums(t *testing.T) {
	for _, s := range VehicleStatuses {
		assert.True(t, s.Valid())
	}
	for _, s := range []string{"", "available", "BUSY", "ON MISSION"} {
		assert.False(t, VehicleStatus(s).Valid(), s)
		assert.False(t, RequestStatus(s).Valid(), s)
	}
	assert.True(t, EmergencyNonUrgent.Valid())
	assert.False(t, EmergencyType("LOW").Valid())
}

func TestRoleIsStaff(t *testing.T) {
	assert.True(t, RoleNurse.IsStaff())
	assert.False(t, Role("Paramedic").IsStaff())
}

func TestVehicleHasCrewMember(t *testing.T) {
	id := primitive.NewObjectID()
	v := Vehicle{Crew: []primitive.ObjectID{id}}
	assert.True(t, v.HasCrewMember(id))
	assert.False(t, v.HasCrewMember(primitive.NewObjectID()))
}
