package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// ErrNoMatch is returned when the geocoder knows no place by the given name
var ErrNoMatch = errors.New("no matching place")

// Geocoder resolves a free-text place name to a coordinate
type Geocoder interface {
	Geocode(ctx context.Context, query string) (models.Coordinate, error)
}

// Nominatim queries an OpenStreetMap Nominatim search endpoint
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNominatim creates a geocoder for baseURL. A nil client gets a 10 second timeout.
func NewNominatim(baseURL string, client *http.Client) *Nominatim {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "ambulance-dispatch-api",
		client:    client,
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the first match for query
func (n *Nominatim) Geocode(ctx context.Context, query string) (models.Coordinate, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return models.Coordinate{}, err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("geocoder request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Coordinate{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return models.Coordinate{}, fmt.Errorf("failed to decode geocoder response: %w", err)
	}
	if len(places) == 0 {
		return models.Coordinate{}, ErrNoMatch
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("geocoder returned latitude %q: %w", places[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("geocoder returned longitude %q: %w", places[0].Lon, err)
	}
	c := models.Coordinate{Latitude: lat, Longitude: lng}
	if !c.Valid() {
		return models.Coordinate{}, models.ErrInvalidCoordinate
	}
	return c, nil
}
