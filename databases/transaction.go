package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// Transactor runs fn as one unit of work. Writes issued with the context passed
// to fn take part in the unit.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// NewTransactor returns a session backed transactor, or one that runs fn
// directly when the deployment has no replica set.
func NewTransactor(client ClientHelper, enabled bool) Transactor {
	if !enabled {
		return DirectTransactor{}
	}
	return &sessionTransactor{client: client}
}

type sessionTransactor struct {
	client ClientHelper
}

func (t *sessionTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// DirectTransactor runs fn without a session
type DirectTransactor struct{}

// WithTransaction calls fn with ctx
func (DirectTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
