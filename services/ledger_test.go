package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/realtime"
	"github.com/linesmerrill/ambulance-dispatch-api/services"
)

func (f *fixture) request(t *testing.T, patient string) *models.Request {
	t.Helper()
	r, err := f.ledger.Create(ctx, services.RequestInput{
		Patient:       models.Patient{Name: patient, Phone: "5551234567"},
		EmergencyType: models.EmergencyUrgent,
		Description:   "fall at home",
	})
	require.NoError(t, err)
	return r
}

func TestRequestLedger_CreateValidates(t *testing.T) {
	valid := services.RequestInput{
		Patient:       models.Patient{Name: "Alice", Phone: "5551234567"},
		EmergencyType: models.EmergencyCritical,
		Description:   "chest pain",
	}
	tests := []struct {
		name   string
		modify func(in *services.RequestInput)
	}{
		{"missing name", func(in *services.RequestInput) { in.Patient.Name = "  " }},
		{"short phone", func(in *services.RequestInput) { in.Patient.Phone = "1234567" }},
		{"long phone", func(in *services.RequestInput) { in.Patient.Phone = "1234567890123456" }},
		{"phone with symbols", func(in *services.RequestInput) { in.Patient.Phone = "+15551234567" }},
		{"unknown emergency type", func(in *services.RequestInput) { in.EmergencyType = "SEVERE" }},
		{"lowercase emergency type", func(in *services.RequestInput) { in.EmergencyType = "critical" }},
		{"missing description", func(in *services.RequestInput) { in.Description = "" }},
		{"bad location", func(in *services.RequestInput) {
			in.Patient.Location = &models.Coordinate{Latitude: 95, Longitude: 0}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			in := valid
			tt.modify(&in)
			_, err := f.ledger.Create(ctx, in)
			assertKind(t, services.KindValidation, err)
			assert.Empty(t, f.requests.all())
			assert.Empty(t, f.publisher.named(realtime.EventNewRequest))
		})
	}
}

func TestRequestLedger_CreateNotifiesStaff(t *testing.T) {
	f := newFixture()
	r, err := f.ledger.Create(ctx, services.RequestInput{
		Patient:       models.Patient{Name: "Alice", Phone: "12345678"},
		EmergencyType: models.EmergencyCritical,
		Description:   "chest pain",
	})
	require.NoError(t, err)

	assert.False(t, r.ID.IsZero())
	assert.Equal(t, models.RequestPending, r.Status)
	assert.Nil(t, r.Ambulance)
	assert.Equal(t, r.CreatedAt, r.UpdatedAt)

	events := f.publisher.named(realtime.EventNewRequest)
	require.Len(t, events, 1)
	assert.Equal(t, realtime.StaffTopics(), events[0].topics)
	assert.Equal(t, r, events[0].event.Data)
}

func TestRequestLedger_Get(t *testing.T) {
	f := newFixture()
	r := f.request(t, "Bob")

	got, err := f.ledger.Get(ctx, r.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Patient.Name)
	assert.Nil(t, got.Ambulance)

	_, err = f.ledger.Get(ctx, primitive.NewObjectID().Hex())
	assertKind(t, services.KindNotFound, err)

	_, err = f.ledger.Get(ctx, "123")
	assertKind(t, services.KindValidation, err)
}

func TestRequestLedger_List(t *testing.T) {
	f := newFixture()
	v := f.vehicle(t, "a", models.VehicleAvailable)
	assigned := f.request(t, "Bob")
	f.request(t, "Carol")
	_, err := f.dispatcher.Assign(ctx, assigned.ID.Hex(), v.ID.Hex(), models.Coordinate{Latitude: 1, Longitude: 2})
	require.NoError(t, err)

	all, err := f.ledger.List(ctx, services.RequestQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	accepted, err := f.ledger.List(ctx, services.RequestQuery{Status: "ACCEPTED"})
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	require.NotNil(t, accepted[0].Ambulance)
	assert.Equal(t, v.ID, accepted[0].Ambulance.ID)
	assert.Equal(t, models.VehicleOnMission, accepted[0].Ambulance.Status)

	_, err = f.ledger.List(ctx, services.RequestQuery{Status: "accepted"})
	assertKind(t, services.KindValidation, err)
}
