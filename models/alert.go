package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Alert holds the structure for the alerts collection in mongo
type Alert struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Message   string             `json:"message" bson:"message"`
	Source    string             `json:"source,omitempty" bson:"source,omitempty"`
	Timestamp time.Time          `json:"timestamp" bson:"timestamp"`
}
