package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/config"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/services"
)

// Request exported for testing purposes
type Request struct {
	Ledger     *services.RequestLedger
	Dispatcher *services.Dispatcher
}

type assignBody struct {
	AmbulanceID     string             `json:"ambulanceId"`
	PatientLocation *models.Coordinate `json:"patientLocation"`
}

// CreateRequestHandler records a transport request. It is public.
func (h Request) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	var in services.RequestInput
	if err := decodeBody(r, &in); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	req, err := h.Ledger.Create(r.Context(), in)
	if err != nil {
		serviceError(w, "failed to create ambulance request", err)
		return
	}
	zap.S().Infow("ambulance request created", "request", req.ID.Hex(), "emergencyType", req.EmergencyType)
	writeJSON(w, http.StatusCreated, req)
}

// RequestsHandler lists requests, newest first. Supports ?status=, ?limit= and ?page=.
func (h Request) RequestsHandler(w http.ResponseWriter, r *http.Request) {
	limit, page := getPage(r)
	views, err := h.Ledger.List(r.Context(), services.RequestQuery{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Page:   page,
	})
	if err != nil {
		serviceError(w, "failed to list ambulance requests", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// RequestByIDHandler returns one request with its vehicle
func (h Request) RequestByIDHandler(w http.ResponseWriter, r *http.Request) {
	view, err := h.Ledger.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		serviceError(w, "failed to get ambulance request", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// AssignRequestHandler sends a vehicle to the patient
func (h Request) AssignRequestHandler(w http.ResponseWriter, r *http.Request) {
	var body assignBody
	if err := decodeBody(r, &body); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if body.AmbulanceID == "" {
		config.ErrorStatus("ambulanceId is required", http.StatusBadRequest, w, nil)
		return
	}
	if body.PatientLocation == nil {
		config.ErrorStatus("patientLocation is required", http.StatusBadRequest, w, nil)
		return
	}

	id := mux.Vars(r)["id"]
	view, err := h.Dispatcher.Assign(r.Context(), id, body.AmbulanceID, *body.PatientLocation)
	if err != nil {
		serviceError(w, "failed to assign ambulance", err)
		return
	}
	zap.S().Infow("ambulance assigned", "request", id, "vehicle", body.AmbulanceID, "by", identity(r).ID)
	writeJSON(w, http.StatusOK, view)
}

// RequestStatusHandler moves a request through its lifecycle
func (h Request) RequestStatusHandler(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := decodeBody(r, &body); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	view, err := h.Dispatcher.SetStatus(r.Context(), mux.Vars(r)["id"], body.Status)
	if err != nil {
		serviceError(w, "failed to update request status", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
