package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// Route is a driving route between two points
type Route struct {
	Polyline        []models.Coordinate
	DurationSeconds float64
	DistanceMeters  float64
}

// Router computes driving routes
type Router interface {
	Route(ctx context.Context, from, to models.Coordinate) (*Route, error)
}

// OSRM queries an OSRM route service
type OSRM struct {
	baseURL string
	client  *http.Client
}

// NewOSRM creates a router for baseURL. A nil client gets a 10 second timeout.
func NewOSRM(baseURL string, client *http.Client) *OSRM {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &OSRM{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Duration float64 `json:"duration"`
		Distance float64 `json:"distance"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

func lngLat(c models.Coordinate) string {
	return strconv.FormatFloat(c.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', -1, 64)
}

// Route returns the first route OSRM suggests
func (o *OSRM) Route(ctx context.Context, from, to models.Coordinate) (*Route, error) {
	u := fmt.Sprintf("%s/route/v1/driving/%s;%s?overview=full&geometries=geojson", o.baseURL, lngLat(from), lngLat(to))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("router request failed: %w", err)
	}
	defer resp.Body.Close()

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode router response (status %d): %w", resp.StatusCode, err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return nil, fmt.Errorf("router found no route: %s %s", body.Code, body.Message)
	}

	r := body.Routes[0]
	polyline := make([]models.Coordinate, 0, len(r.Geometry.Coordinates))
	for _, p := range r.Geometry.Coordinates {
		if len(p) < 2 {
			continue
		}
		// GeoJSON positions are longitude first
		polyline = append(polyline, models.Coordinate{Latitude: p[1], Longitude: p[0]})
	}
	return &Route{Polyline: polyline, DurationSeconds: r.Duration, DistanceMeters: r.Distance}, nil
}
