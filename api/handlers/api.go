package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/api"
	"github.com/linesmerrill/ambulance-dispatch-api/api/scheduler"
	"github.com/linesmerrill/ambulance-dispatch-api/config"
	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/realtime"
	"github.com/linesmerrill/ambulance-dispatch-api/services"
	"github.com/linesmerrill/ambulance-dispatch-api/tracker"
)

// tokenCacheTTL is how long a verified credential is remembered
const tokenCacheTTL = 5 * time.Minute

// App stores the router and the dispatch services, so they can be reused
type App struct {
	Router *mux.Router
	Config config.Config

	Registry   *services.VehicleRegistry
	Ledger     *services.RequestLedger
	Dispatcher *services.Dispatcher
	Alerts     *services.Alerts
	Tracker    *tracker.Service
	Auth       *api.Authenticator
	Hub        *realtime.Hub
	Metrics    *api.MetricsCollector

	client    databases.ClientHelper
	relay     *realtime.Relay
	scheduler *scheduler.Scheduler
	cancel    context.CancelFunc
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware(a.Metrics))

	v := Vehicle{Registry: a.Registry, Tracker: a.Tracker}
	req := Request{Ledger: a.Ledger, Dispatcher: a.Dispatcher}
	al := Alert{Alerts: a.Alerts}
	m := Metrics{Collector: a.Metrics}
	gw := Gateway{Registry: a.Registry, Alerts: a.Alerts}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	r.Handle("/ws", realtime.NewGateway(a.Hub, a.Auth, gw, a.Config.AllowedOrigin))

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	// administrators pass every role check, so no roles means admin only
	admin := []models.Role{}
	staff := []models.Role{models.RoleDoctor, models.RoleNurse}
	nurse := []models.Role{models.RoleNurse}

	apiCreate.Handle("/vehicles", a.protect(v.CreateVehicleHandler, admin...)).Methods("POST")
	apiCreate.Handle("/vehicles", a.protect(v.VehiclesHandler, staff...)).Methods("GET")
	apiCreate.Handle("/vehicles/status/available", a.protect(v.AvailableVehiclesHandler, staff...)).Methods("GET")
	apiCreate.Handle("/vehicles/assigned", a.protect(v.AssignedVehicleHandler, nurse...)).Methods("GET")
	apiCreate.Handle("/vehicles/{id}", a.protect(v.VehicleByIDHandler, staff...)).Methods("GET")
	apiCreate.Handle("/vehicles/{id}", a.protect(v.UpdateVehicleHandler, nurse...)).Methods("PUT")
	apiCreate.Handle("/vehicles/{id}", a.protect(v.DeleteVehicleHandler, admin...)).Methods("DELETE")
	apiCreate.Handle("/vehicles/{id}/status", a.protect(v.VehicleStatusHandler, staff...)).Methods("PUT")
	apiCreate.Handle("/vehicles/{id}/location", a.protect(v.VehicleLocationHandler, staff...)).Methods("PUT")
	apiCreate.Handle("/vehicles/{id}/destination", a.protect(v.VehicleDestinationHandler, staff...)).Methods("PUT")
	apiCreate.Handle("/vehicles/{id}/eta", a.protect(v.VehicleETAHandler, staff...)).Methods("GET")
	apiCreate.Handle("/vehicles/{id}/crew", a.protect(v.AddCrewMemberHandler, admin...)).Methods("POST")
	apiCreate.Handle("/vehicles/{id}/crew/{userId}", a.protect(v.RemoveCrewMemberHandler, admin...)).Methods("DELETE")

	apiCreate.Handle("/requests", a.withTimeout(http.HandlerFunc(req.CreateRequestHandler))).Methods("POST")
	apiCreate.Handle("/requests", a.protect(req.RequestsHandler, staff...)).Methods("GET")
	apiCreate.Handle("/requests/{id}", a.protect(req.RequestByIDHandler, staff...)).Methods("GET")
	apiCreate.Handle("/requests/{id}/assign", a.protect(req.AssignRequestHandler, staff...)).Methods("PATCH")
	apiCreate.Handle("/requests/{id}/status", a.protect(req.RequestStatusHandler, staff...)).Methods("PATCH")

	apiCreate.Handle("/alerts", a.protect(al.AlertsHandler, staff...)).Methods("GET")
	apiCreate.Handle("/alerts", a.protect(al.CreateAlertHandler, staff...)).Methods("POST")

	apiCreate.Handle("/metrics", a.protect(m.MetricsHandler, admin...)).Methods("GET")

	return r
}

// protect requires a credential holding one of roles
func (a *App) protect(h http.HandlerFunc, roles ...models.Role) http.Handler {
	return a.Auth.Middleware(api.RequireRole(roles...)(a.withTimeout(h)))
}

func (a *App) withTimeout(h http.Handler) http.Handler {
	if a.Config.RequestTimeout <= 0 {
		return h
	}
	return api.TimeoutMiddleware(a.Config.RequestTimeout)(h)
}

// Handler is the root handler: the router behind CORS
func (a *App) Handler() http.Handler {
	return api.CORSMiddleware(a.Config.AllowedOrigin)(a.Router)
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	a.client = client
	zap.S().Info("ambulance-dispatch-api has connected to the database")

	dbHelper := databases.NewDatabase(&a.Config, client)
	vdb := databases.NewVehicleDatabase(dbHelper)
	rdb := databases.NewRequestDatabase(dbHelper)
	if err := vdb.EnsureIndexes(ctx); err != nil {
		zap.S().With(err).Error("failed to create vehicle indexes")
		return err
	}
	if err := rdb.EnsureIndexes(ctx); err != nil {
		zap.S().With(err).Error("failed to create request indexes")
		return err
	}

	runCtx, stop := context.WithCancel(context.Background())
	a.cancel = stop

	a.Hub = realtime.NewHub()
	var publisher realtime.Publisher = a.Hub
	if a.Config.AMQPURL != "" {
		relay, err := realtime.DialRelay(a.Config.AMQPURL, a.Hub)
		if err != nil {
			zap.S().With(err).Error("failed to connect to the event relay")
			return err
		}
		a.relay = relay
		publisher = relay
		go func() {
			if err := relay.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				zap.S().Errorw("event relay stopped", "error", err)
			}
		}()
		zap.S().Info("event relay enabled")
	}

	tx := databases.NewTransactor(client, a.Config.MongoTransactions)
	a.Registry = services.NewVehicleRegistry(vdb, databases.NewUserDatabase(dbHelper), publisher)
	a.Ledger = services.NewRequestLedger(rdb, vdb, a.Registry, publisher)
	a.Dispatcher = services.NewDispatcher(rdb, vdb, tx, a.Registry, a.Ledger, publisher)
	a.Alerts = services.NewAlerts(databases.NewAlertDatabase(dbHelper), publisher)

	httpClient := &http.Client{Timeout: 10 * time.Second}
	var router tracker.Router
	if a.Config.RouterURL != "" {
		router = tracker.NewOSRM(a.Config.RouterURL, httpClient)
	}
	a.Tracker = tracker.NewService(a.Registry, tracker.NewNominatim(a.Config.GeocoderURL, httpClient), tracker.NewEstimator(router))

	a.Auth = api.NewAuthenticator(api.NewTokenVerifier(a.Config.JWTSecret), tokenCacheTTL)
	a.Metrics = api.NewMetricsCollector(0)

	if a.Config.StaleAfter > 0 {
		a.scheduler = scheduler.NewScheduler(vdb, a.Alerts, a.Config.StaleAfter)
		a.scheduler.Start()
	}

	// initialize api router
	a.initializeRoutes()
	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// Close stops the background jobs and disconnects from the database
func (a *App) Close(ctx context.Context) {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.relay != nil {
		if err := a.relay.Close(); err != nil {
			zap.S().Warnw("failed to close event relay", "error", err)
		}
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil {
			zap.S().Warnw("failed to disconnect from database", "error", err)
		}
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
