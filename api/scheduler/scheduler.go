package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/services"
)

// AlertRaiser persists and broadcasts an alert
type AlertRaiser interface {
	Raise(ctx context.Context, in services.AlertInput) (*models.Alert, error)
}

// Scheduler runs the periodic dispatch housekeeping jobs
type Scheduler struct {
	cron       *cron.Cron
	VDB        databases.VehicleDatabase
	Alerts     AlertRaiser
	StaleAfter time.Duration
	now        func() time.Time

	mu sync.Mutex
	// vehicle -> lastUpdated at the time the alert was raised
	alerted map[primitive.ObjectID]time.Time
}

// NewScheduler creates a scheduler that flags vehicles on a mission whose
// position is older than staleAfter.
func NewScheduler(vdb databases.VehicleDatabase, alerts AlertRaiser, staleAfter time.Duration) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		VDB:        vdb,
		Alerts:     alerts,
		StaleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
		alerted:    make(map[primitive.ObjectID]time.Time),
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	_, err := s.cron.AddFunc("@every 1m", s.sweepStaleVehicles)
	if err != nil {
		zap.S().Errorw("failed to register stale vehicle job", "error", err)
	}

	s.cron.Start()
	zap.S().Infow("dispatch scheduler started", "staleAfter", s.StaleAfter.String())
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("dispatch scheduler stopped")
}

func (s *Scheduler) sweepStaleVehicles() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.SweepStaleVehicles(ctx); err != nil {
		zap.S().Errorw("stale vehicle sweep failed", "error", err)
	}
}

// SweepStaleVehicles raises one alert per vehicle on a mission that has not
// reported a position within StaleAfter. A vehicle is alerted again only after
// it has reported in between. It returns the number of alerts raised.
func (s *Scheduler) SweepStaleVehicles(ctx context.Context) (int, error) {
	status := models.VehicleOnMission
	cutoff := s.now().Add(-s.StaleAfter)
	vehicles, err := s.VDB.Find(ctx, databases.VehicleFilter{Status: &status, UpdatedBefore: &cutoff})
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stale := make(map[primitive.ObjectID]bool, len(vehicles))
	raised := 0
	for _, v := range vehicles {
		stale[v.ID] = true
		if last, ok := s.alerted[v.ID]; ok && last.Equal(v.LastUpdated) {
			continue
		}
		_, err := s.Alerts.Raise(ctx, services.AlertInput{
			Message: fmt.Sprintf("%s has not reported a position since %s", v.Name, v.LastUpdated.Format(time.RFC3339)),
			Source:  "tracker",
		})
		if err != nil {
			zap.S().Errorw("failed to raise stale vehicle alert", "vehicle", v.ID.Hex(), "error", err)
			continue
		}
		s.alerted[v.ID] = v.LastUpdated
		raised++
	}
	for id := range s.alerted {
		if !stale[id] {
			delete(s.alerted, id)
		}
	}
	return raised, nil
}
