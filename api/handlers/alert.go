package handlers

import (
	"net/http"

	"github.com/linesmerrill/ambulance-dispatch-api/config"
	"github.com/linesmerrill/ambulance-dispatch-api/services"
)

// Alert exported for testing purposes
type Alert struct {
	Alerts *services.Alerts
}

// AlertsHandler lists alerts, newest first
func (a Alert) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	limit, page := getPage(r)
	alerts, err := a.Alerts.List(r.Context(), limit, page)
	if err != nil {
		serviceError(w, "failed to list alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// CreateAlertHandler persists an alert and broadcasts it to every connection
func (a Alert) CreateAlertHandler(w http.ResponseWriter, r *http.Request) {
	var in services.AlertInput
	if err := decodeBody(r, &in); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	alert, err := a.Alerts.Raise(r.Context(), in)
	if err != nil {
		serviceError(w, "failed to raise alert", err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}
