package handlers_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/ambulance-dispatch-api/api"
	"github.com/linesmerrill/ambulance-dispatch-api/api/handlers"
	"github.com/linesmerrill/ambulance-dispatch-api/config"
	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/databases/mocks"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/realtime"
	"github.com/linesmerrill/ambulance-dispatch-api/services"
	"github.com/linesmerrill/ambulance-dispatch-api/tracker"
)

const secret = "test-secret"

type stubGeocoder map[string]models.Coordinate

func (s stubGeocoder) Geocode(_ context.Context, query string) (models.Coordinate, error) {
	c, ok := s[query]
	if !ok {
		return models.Coordinate{}, tracker.ErrNoMatch
	}
	return c, nil
}

type testApp struct {
	*handlers.App
	vdb *mocks.VehicleDatabase
	rdb *mocks.RequestDatabase
	udb *mocks.UserDatabase
	adb *mocks.AlertDatabase
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ta := &testApp{
		vdb: &mocks.VehicleDatabase{},
		rdb: &mocks.RequestDatabase{},
		udb: &mocks.UserDatabase{},
		adb: &mocks.AlertDatabase{},
	}
	hub := realtime.NewHub()
	registry := services.NewVehicleRegistry(ta.vdb, ta.udb, hub)
	ledger := services.NewRequestLedger(ta.rdb, ta.vdb, registry, hub)
	geocoder := stubGeocoder{"Hôpital Nord": {Latitude: 43.38, Longitude: 5.36}}

	ta.App = &handlers.App{
		Config: config.Config{
			JWTSecret:      secret,
			AllowedOrigin:  "http://localhost:3000",
			RequestTimeout: 5 * time.Second,
		},
		Registry:   registry,
		Ledger:     ledger,
		Dispatcher: services.NewDispatcher(ta.rdb, ta.vdb, databases.DirectTransactor{}, registry, ledger, hub),
		Alerts:     services.NewAlerts(ta.adb, hub),
		Tracker:    tracker.NewService(registry, geocoder, tracker.NewEstimator(nil)),
		Auth:       api.NewAuthenticator(api.NewTokenVerifier(secret), time.Minute),
		Hub:        hub,
		Metrics:    api.NewMetricsCollector(100),
	}
	ta.Router = ta.New()
	t.Cleanup(func() {
		ta.vdb.AssertExpectations(t)
		ta.rdb.AssertExpectations(t)
		ta.adb.AssertExpectations(t)
	})
	return ta
}

func token(t *testing.T, id string, role models.Role) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   id,
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

// do sends a request through the full handler chain. An empty role sends no credential.
func (ta *testApp) do(t *testing.T, method, path, body string, role models.Role) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, staffID.Hex(), role))
	}
	rr := httptest.NewRecorder()
	ta.Handler().ServeHTTP(rr, req)
	return rr
}

var staffID = primitive.NewObjectID()

func availableVehicle() *models.Vehicle {
	return &models.Vehicle{
		ID:          primitive.NewObjectID(),
		Name:        "Medic 1",
		Mobile:      "0600000001",
		Status:      models.VehicleAvailable,
		Location:    models.Coordinate{Latitude: 43.3, Longitude: 5.4},
		Crew:        []primitive.ObjectID{},
		LastUpdated: time.Now().UTC(),
	}
}

func pendingRequest() *models.Request {
	now := time.Now().UTC()
	return &models.Request{
		ID:            primitive.NewObjectID(),
		Patient:       models.Patient{Name: "Alice", Phone: "12345678"},
		Status:        models.RequestPending,
		EmergencyType: models.EmergencyCritical,
		Description:   "chest pain",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
