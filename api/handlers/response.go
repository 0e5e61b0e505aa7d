package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/api"
	"github.com/linesmerrill/ambulance-dispatch-api/config"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/services"
)

// maxBodySize bounds every JSON request body
const maxBodySize = 1 << 20

// VehicleResponse pairs a confirmation message with the changed vehicle
type VehicleResponse struct {
	Message   string              `json:"message"`
	Ambulance *models.VehicleView `json:"ambulance"`
}

// MessageResponse is a bare confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		zap.S().Debugw("failed to write response", "error", err)
	}
}

// serviceError translates a service error into its HTTP status
func serviceError(w http.ResponseWriter, message string, err error) {
	config.ErrorStatus(message, services.HTTPStatus(err), w, err)
}

// decodeBody reads a JSON body into v. An empty body is an error.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func identity(r *http.Request) models.Identity {
	id, _ := api.IdentityFrom(r.Context())
	return id
}

func getPage(r *http.Request) (limit, page int64) {
	limit, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	if err != nil || limit <= 0 {
		limit = 0
	}
	page, err = strconv.ParseInt(r.URL.Query().Get("page"), 10, 64)
	if err != nil || page < 0 {
		page = 0
	}
	return limit, page
}
