package models

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Coordinate is a WGS84 position
type Coordinate struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// ErrInvalidCoordinate is returned when a coordinate cannot be parsed or is out of range
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Valid reports whether both components are finite and within range.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) || math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// String encodes the coordinate as "lat,lng"
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// ParseCoordinate decodes a "lat,lng" pair
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Coordinate{}, ErrInvalidCoordinate
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, ErrInvalidCoordinate
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, ErrInvalidCoordinate
	}
	c := Coordinate{Latitude: lat, Longitude: lng}
	if !c.Valid() {
		return Coordinate{}, ErrInvalidCoordinate
	}
	return c, nil
}

// Destination is stored as a structured coordinate but travels over JSON in
// the legacy "lat,lng" string form the dashboards already understand.
type Destination Coordinate

// NewDestination converts a coordinate into a destination
func NewDestination(c Coordinate) *Destination {
	d := Destination(c)
	return &d
}

// Coordinate returns the destination as a plain coordinate
func (d Destination) Coordinate() Coordinate {
	return Coordinate(d)
}

func (d Destination) String() string {
	return Coordinate(d).String()
}

// MarshalJSON writes the "lat,lng" form
func (d Destination) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts either the "lat,lng" form or a {latitude, longitude} object.
func (d *Destination) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		c, err := ParseCoordinate(s)
		if err != nil {
			return err
		}
		*d = Destination(c)
		return nil
	}
	var c Coordinate
	if err := json.Unmarshal(b, &c); err != nil {
		return ErrInvalidCoordinate
	}
	if !c.Valid() {
		return ErrInvalidCoordinate
	}
	*d = Destination(c)
	return nil
}
