package services

import (
	"context"
	"strings"
	"time"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/realtime"
)

// AlertInput is the body of a raised alert
type AlertInput struct {
	Message string `json:"message"`
	Source  string `json:"source"`
}

// Alerts persists operational alerts and broadcasts them to every connection
type Alerts struct {
	alerts    databases.AlertDatabase
	publisher realtime.Publisher
	now       func() time.Time
}

// NewAlerts creates the alert service
func NewAlerts(alerts databases.AlertDatabase, publisher realtime.Publisher) *Alerts {
	return &Alerts{
		alerts:    alerts,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Raise stores the alert, then broadcasts it
func (a *Alerts) Raise(ctx context.Context, in AlertInput) (*models.Alert, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, ValidationError("message is required")
	}
	alert, err := a.alerts.InsertOne(ctx, &models.Alert{
		Message:   message,
		Source:    strings.TrimSpace(in.Source),
		Timestamp: a.now(),
	})
	if err != nil {
		return nil, storeError(err, "alert")
	}
	a.publisher.PublishAll(realtime.NewEvent(realtime.EventAlert, alert))
	return alert, nil
}

// List returns alerts newest first
func (a *Alerts) List(ctx context.Context, limit, page int64) ([]models.Alert, error) {
	alerts, err := a.alerts.Find(ctx, limit, page)
	if err != nil {
		return nil, storeError(err, "alert")
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return alerts, nil
}
