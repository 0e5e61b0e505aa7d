package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/config"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/services"
	"github.com/linesmerrill/ambulance-dispatch-api/tracker"
)

// Vehicle exported for testing purposes
type Vehicle struct {
	Registry *services.VehicleRegistry
	Tracker  *tracker.Service
}

type statusBody struct {
	Status string `json:"status"`
}

type locationBody struct {
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

type crewBody struct {
	UserID string `json:"userId"`
}

// destinationBody is either {"query": "..."} or {"latitude": .., "longitude": ..}
type destinationBody struct {
	Query     string   `json:"query"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// CreateVehicleHandler creates a vehicle
func (v Vehicle) CreateVehicleHandler(w http.ResponseWriter, r *http.Request) {
	var in services.VehicleInput
	if err := decodeBody(r, &in); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	view, err := v.Registry.Create(r.Context(), in)
	if err != nil {
		serviceError(w, "failed to create vehicle", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// VehiclesHandler lists vehicles, optionally filtered with ?status=
func (v Vehicle) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
	var status *models.VehicleStatus
	if s := r.URL.Query().Get("status"); s != "" {
		parsed, err := services.ParseVehicleStatus(s)
		if err != nil {
			serviceError(w, "failed to list vehicles", err)
			return
		}
		status = &parsed
	}
	views, err := v.Registry.List(r.Context(), status)
	if err != nil {
		serviceError(w, "failed to list vehicles", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// AvailableVehiclesHandler lists the vehicles that can take a mission
func (v Vehicle) AvailableVehiclesHandler(w http.ResponseWriter, r *http.Request) {
	views, err := v.Registry.ListAvailable(r.Context())
	if err != nil {
		serviceError(w, "failed to list available vehicles", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// AssignedVehicleHandler returns the vehicle the caller is crewing
func (v Vehicle) AssignedVehicleHandler(w http.ResponseWriter, r *http.Request) {
	view, err := v.Registry.AssignedTo(r.Context(), identity(r).ID)
	if err != nil {
		serviceError(w, "failed to get assigned vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// VehicleByIDHandler returns a vehicle by ID
func (v Vehicle) VehicleByIDHandler(w http.ResponseWriter, r *http.Request) {
	view, err := v.Registry.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		serviceError(w, "failed to get vehicle by ID", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateVehicleHandler changes the name, mobile or location of a vehicle
func (v Vehicle) UpdateVehicleHandler(w http.ResponseWriter, r *http.Request) {
	var patch services.VehiclePatch
	if err := decodeBody(r, &patch); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	view, err := v.Registry.Update(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		serviceError(w, "failed to update vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteVehicleHandler removes an idle vehicle
func (v Vehicle) DeleteVehicleHandler(w http.ResponseWriter, r *http.Request) {
	if err := v.Registry.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		serviceError(w, "failed to delete vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "vehicle deleted"})
}

// VehicleStatusHandler changes the status of a vehicle
func (v Vehicle) VehicleStatusHandler(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := decodeBody(r, &body); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	view, err := v.Registry.SetStatus(r.Context(), mux.Vars(r)["id"], body.Status)
	if err != nil {
		serviceError(w, "failed to update vehicle status", err)
		return
	}
	writeJSON(w, http.StatusOK, VehicleResponse{Message: "vehicle status updated to " + string(view.Status), Ambulance: view})
}

// VehicleLocationHandler records a position report
func (v Vehicle) VehicleLocationHandler(w http.ResponseWriter, r *http.Request) {
	var body locationBody
	if err := decodeBody(r, &body); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if body.Latitude == nil || body.Longitude == nil {
		config.ErrorStatus("latitude and longitude are required", http.StatusBadRequest, w, nil)
		return
	}
	c := models.Coordinate{Latitude: *body.Latitude, Longitude: *body.Longitude}
	view, err := v.Registry.SetLocation(r.Context(), mux.Vars(r)["id"], c, body.Timestamp)
	if err != nil {
		serviceError(w, "failed to update vehicle location", err)
		return
	}
	writeJSON(w, http.StatusOK, VehicleResponse{Message: "vehicle location updated", Ambulance: view})
}

// VehicleDestinationHandler re-routes a vehicle. The body is an address to
// geocode, a coordinate, or null to clear the destination.
func (v Vehicle) VehicleDestinationHandler(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeBody(r, &raw); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	id := mux.Vars(r)["id"]

	var view *models.VehicleView
	var err error
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		view, err = v.Registry.SetDestination(r.Context(), id, nil)
	} else {
		var body destinationBody
		if err := json.Unmarshal(raw, &body); err != nil {
			config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
			return
		}
		switch {
		case body.Query != "":
			view, err = v.Tracker.ResolveDestination(r.Context(), id, body.Query)
		case body.Latitude != nil && body.Longitude != nil:
			view, err = v.Registry.SetDestination(r.Context(), id, &models.Coordinate{Latitude: *body.Latitude, Longitude: *body.Longitude})
		default:
			config.ErrorStatus("query or latitude and longitude are required", http.StatusBadRequest, w, nil)
			return
		}
	}
	if err != nil {
		serviceError(w, "failed to update vehicle destination", err)
		return
	}
	writeJSON(w, http.StatusOK, VehicleResponse{Message: "vehicle destination updated", Ambulance: view})
}

// VehicleETAHandler estimates the route from the vehicle to its destination
func (v Vehicle) VehicleETAHandler(w http.ResponseWriter, r *http.Request) {
	estimate, err := v.Tracker.ETA(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		serviceError(w, "failed to estimate arrival", err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

// AddCrewMemberHandler adds a staff member to the crew
func (v Vehicle) AddCrewMemberHandler(w http.ResponseWriter, r *http.Request) {
	var body crewBody
	if err := decodeBody(r, &body); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	view, err := v.Registry.AddCrewMember(r.Context(), mux.Vars(r)["id"], body.UserID)
	if err != nil {
		serviceError(w, "failed to add crew member", err)
		return
	}
	zap.S().Infow("crew member added", "vehicle", view.ID.Hex(), "user", body.UserID)
	writeJSON(w, http.StatusOK, VehicleResponse{Message: "crew member added", Ambulance: view})
}

// RemoveCrewMemberHandler removes a staff member from the crew
func (v Vehicle) RemoveCrewMemberHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := v.Registry.RemoveCrewMember(r.Context(), vars["id"], vars["userId"])
	if err != nil {
		serviceError(w, "failed to remove crew member", err)
		return
	}
	zap.S().Infow("crew member removed", "vehicle", view.ID.Hex(), "user", vars["userId"])
	writeJSON(w, http.StatusOK, VehicleResponse{Message: "crew member removed", Ambulance: view})
}
