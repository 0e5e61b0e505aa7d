package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/realtime"
)

// Dispatcher is the only writer of the request to vehicle link. Every
// transition that touches both documents runs as one unit of work, and each
// write is conditional on the state it expects to find.
type Dispatcher struct {
	requests  databases.RequestDatabase
	vehicles  databases.VehicleDatabase
	tx        databases.Transactor
	registry  *VehicleRegistry
	ledger    *RequestLedger
	publisher realtime.Publisher
	now       func() time.Time
}

// NewDispatcher creates a dispatcher
func NewDispatcher(requests databases.RequestDatabase, vehicles databases.VehicleDatabase, tx databases.Transactor,
	registry *VehicleRegistry, ledger *RequestLedger, publisher realtime.Publisher) *Dispatcher {
	return &Dispatcher{
		requests:  requests,
		vehicles:  vehicles,
		tx:        tx,
		registry:  registry,
		ledger:    ledger,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Assign links a PENDING request to an AVAILABLE vehicle and sends the vehicle
// to the patient. Of two concurrent assigns on one vehicle exactly one wins.
func (d *Dispatcher) Assign(ctx context.Context, requestID, vehicleID string, patient models.Coordinate) (*models.RequestView, error) {
	rid, err := parseID(requestID, "request")
	if err != nil {
		return nil, err
	}
	vid, err := parseID(vehicleID, "vehicle")
	if err != nil {
		return nil, err
	}
	if !patient.Valid() {
		return nil, ValidationError("patient location must be a numeric latitude and longitude in range")
	}

	var req *models.Request
	var vehicle *models.Vehicle
	err = d.tx.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := d.requests.FindByID(ctx, rid)
		if err != nil {
			return storeError(err, "request")
		}
		if current.Status != models.RequestPending {
			return ConflictError("request is %s, not PENDING", current.Status)
		}

		now := d.now()
		onMission := models.VehicleOnMission
		v, err := d.vehicles.FindOneAndUpdate(ctx, vid,
			databases.VehicleGuard{StatusIn: []models.VehicleStatus{models.VehicleAvailable}},
			databases.VehicleUpdate{
				Status:      &onMission,
				Destination: models.NewDestination(patient),
				Mission:     &rid,
				LastUpdated: now,
			})
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, ferr := d.vehicles.FindByID(ctx, vid); ferr != nil {
				return storeError(ferr, "vehicle")
			}
			return ConflictError("vehicle not available")
		}
		if err != nil {
			return storeError(err, "vehicle")
		}

		r, err := d.requests.Transition(ctx, rid, []models.RequestStatus{models.RequestPending}, databases.RequestUpdate{
			Status:          models.RequestAccepted,
			Ambulance:       &vid,
			PatientLocation: &patient,
			UpdatedAt:       now,
		})
		if err != nil {
			d.unreserve(ctx, vid, rid)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ConflictError("request is no longer PENDING")
			}
			return storeError(err, "request")
		}

		req, vehicle = r, v
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := d.registry.View(ctx, vehicle)
	zap.S().Infow("vehicle assigned", "request", rid.Hex(), "vehicle", vid.Hex())

	d.publisher.Publish(realtime.NewEvent(realtime.EventNewMission, req), realtime.VehicleTopic(vid.Hex()))
	d.publisher.Publish(realtime.NewEvent(realtime.EventDestinationUpdate,
		realtime.NewDestinationPayload(vid.Hex(), vehicle.Destination)), realtime.VehicleAudience(vid.Hex())...)
	d.publishStatus(req)

	return &models.RequestView{Request: *req, Ambulance: view}, nil
}

// unreserve compensates a reservation whose request write failed
func (d *Dispatcher) unreserve(ctx context.Context, vid, rid primitive.ObjectID) {
	available := models.VehicleAvailable
	_, err := d.vehicles.FindOneAndUpdate(ctx, vid,
		databases.VehicleGuard{Mission: &rid},
		databases.VehicleUpdate{
			Status:           &available,
			ClearDestination: true,
			ClearMission:     true,
			LastUpdated:      d.now(),
		})
	if err != nil {
		zap.S().Errorw("failed to release reserved vehicle", "vehicle", vid.Hex(), "request", rid.Hex(), "error", err)
	}
}

// SetStatus moves a request along its lifecycle. ACCEPTED is reached only
// through Assign. Re-applying the current status is a no-op, which makes
// completion idempotent. COMPLETED and CANCELLED release the attached vehicle.
func (d *Dispatcher) SetStatus(ctx context.Context, requestID, s string) (*models.RequestView, error) {
	rid, err := parseID(requestID, "request")
	if err != nil {
		return nil, err
	}
	target, err := ParseRequestStatus(s)
	if err != nil {
		return nil, err
	}
	if target == models.RequestAccepted {
		return nil, ValidationError("requests are accepted by assigning a vehicle")
	}

	var req *models.Request
	var released *models.Vehicle
	changed := false
	err = d.tx.WithTransaction(ctx, func(ctx context.Context) error {
		released, changed = nil, false
		current, err := d.requests.FindByID(ctx, rid)
		if err != nil {
			return storeError(err, "request")
		}
		if current.Status == target {
			req = current
			released, err = d.releaseAgain(ctx, current)
			return err
		}
		if !current.Status.CanTransitionTo(target) {
			return ConflictError("cannot move request from %s to %s", current.Status, target)
		}

		now := d.now()
		r, err := d.requests.Transition(ctx, rid, []models.RequestStatus{current.Status}, databases.RequestUpdate{
			Status:    target,
			UpdatedAt: now,
		})
		if errors.Is(err, mongo.ErrNoDocuments) {
			latest, ferr := d.requests.FindByID(ctx, rid)
			if ferr != nil {
				return storeError(ferr, "request")
			}
			if latest.Status == target {
				req = latest
				released, err = d.releaseAgain(ctx, latest)
				return err
			}
			return ConflictError("request changed to %s concurrently", latest.Status)
		}
		if err != nil {
			return storeError(err, "request")
		}
		req, changed = r, true

		if target.Terminal() && r.Ambulance != nil {
			released, err = d.release(ctx, *r.Ambulance, rid, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		zap.S().Infow("request status changed", "request", rid.Hex(), "status", target)
		d.publishStatus(req)
	}
	if released != nil {
		d.publisher.Publish(realtime.NewEvent(realtime.EventVehicleUpdate, d.registry.View(ctx, released)),
			realtime.VehicleAudience(released.ID.Hex())...)
	}

	views, err := d.ledger.Views(ctx, []models.Request{*req})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Complete is SetStatus(COMPLETED)
func (d *Dispatcher) Complete(ctx context.Context, requestID string) (*models.RequestView, error) {
	return d.SetStatus(ctx, requestID, string(models.RequestCompleted))
}

// Cancel is SetStatus(CANCELLED). The request keeps its vehicle reference
// and the vehicle is released.
func (d *Dispatcher) Cancel(ctx context.Context, requestID string) (*models.RequestView, error) {
	return d.SetStatus(ctx, requestID, string(models.RequestCancelled))
}

// release forces the vehicle serving rid back to AVAILABLE, whatever status it
// was switched to by hand during the mission. A vehicle that has since been
// deleted or no longer serves rid is left alone.
func (d *Dispatcher) release(ctx context.Context, vid, rid primitive.ObjectID, now time.Time) (*models.Vehicle, error) {
	available := models.VehicleAvailable
	v, err := d.vehicles.FindOneAndUpdate(ctx, vid,
		databases.VehicleGuard{Mission: &rid},
		databases.VehicleUpdate{
			Status:           &available,
			ClearDestination: true,
			ClearMission:     true,
			LastUpdated:      now,
		})
	if errors.Is(err, mongo.ErrNoDocuments) {
		zap.S().Debugw("vehicle no longer serves request, nothing to release", "vehicle", vid.Hex(), "request", rid.Hex())
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err, "vehicle")
	}
	return v, nil
}

// releaseAgain retries the release of a request that already reached a
// terminal status. Without transactions an earlier release may have failed
// after the request write; the mission guard makes the retry a no-op otherwise.
func (d *Dispatcher) releaseAgain(ctx context.Context, r *models.Request) (*models.Vehicle, error) {
	if !r.Status.Terminal() || r.Ambulance == nil {
		return nil, nil
	}
	return d.release(ctx, *r.Ambulance, r.ID, d.now())
}

func (d *Dispatcher) publishStatus(req *models.Request) {
	topics := append([]string{realtime.RequestTopic(req.ID.Hex())}, realtime.StaffTopics()...)
	d.publisher.Publish(realtime.NewEvent(realtime.EventStatusUpdate, realtime.StatusPayload{
		RequestID: req.ID.Hex(),
		Status:    req.Status,
	}), topics...)
}
