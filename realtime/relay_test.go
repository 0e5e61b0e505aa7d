package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// fakeBus stands in for a fanout exchange
type fakeBus struct {
	mu     sync.Mutex
	queues []chan amqp.Delivery
}

func (b *fakeBus) bound() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues)
}

// drop simulates the broker closing the channel behind q
func (b *fakeBus) drop(q chan amqp.Delivery) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, bound := range b.queues {
		if bound == q {
			b.queues = append(b.queues[:i], b.queues[i+1:]...)
			break
		}
	}
	close(q)
}

type fakeChannel struct {
	bus   *fakeBus
	queue chan amqp.Delivery
}

func (f *fakeChannel) ExchangeDeclare(string, string, bool, bool, bool, bool, amqp.Table) error {
	return nil
}

func (f *fakeChannel) QueueDeclare(string, bool, bool, bool, bool, amqp.Table) (amqp.Queue, error) {
	f.queue = make(chan amqp.Delivery, 16)
	return amqp.Queue{Name: "amq.gen-test"}, nil
}

func (f *fakeChannel) QueueBind(string, string, string, bool, amqp.Table) error {
	f.bus.mu.Lock()
	defer f.bus.mu.Unlock()
	f.bus.queues = append(f.bus.queues, f.queue)
	return nil
}

func (f *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return f.queue, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	f.bus.mu.Lock()
	defer f.bus.mu.Unlock()
	for _, q := range f.bus.queues {
		q <- amqp.Delivery{Body: msg.Body}
	}
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func TestRelay_ForwardsToOtherInstances(t *testing.T) {
	bus := &fakeBus{}
	hubA, hubB := NewHub(), NewHub()

	relayA, err := newRelay(hubA, &fakeChannel{bus: bus}, DefaultExchange)
	require.NoError(t, err)
	relayB, err := newRelay(hubB, &fakeChannel{bus: bus}, DefaultExchange)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relayA.Run(ctx) }()
	go func() { _ = relayB.Run(ctx) }()
	require.Eventually(t, func() bool { return bus.bound() == 2 }, time.Second, 10*time.Millisecond)

	onA := newTestClient("a", models.RoleNurse, 8)
	onB := newTestClient("b", models.RoleNurse, 8)
	hubA.Register(onA, VehicleTopic("v1"))
	hubB.Register(onB, VehicleTopic("v1"))

	relayA.Publish(NewEvent(EventVehicleUpdate, map[string]string{"status": "AVAILABLE"}), VehicleTopic("v1"))

	var got []Event
	require.Eventually(t, func() bool {
		got = append(got, drain(onB)...)
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, EventVehicleUpdate, got[0].Name)
	assert.Equal(t, map[string]interface{}{"status": "AVAILABLE"}, got[0].Data)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, drain(onA), 1, "the origin instance delivers once")
}

func TestRelay_PublishAllForwardsToEveryone(t *testing.T) {
	bus := &fakeBus{}
	hubA, hubB := NewHub(), NewHub()
	relayA, err := newRelay(hubA, &fakeChannel{bus: bus}, DefaultExchange)
	require.NoError(t, err)
	relayB, err := newRelay(hubB, &fakeChannel{bus: bus}, DefaultExchange)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relayB.Run(ctx) }()
	require.Eventually(t, func() bool { return bus.bound() == 1 }, time.Second, 10*time.Millisecond)

	onB := newTestClient("b", "Patient", 8)
	hubB.Register(onB)

	relayA.PublishAll(NewEvent(EventAlert, map[string]string{"message": "road closed"}))

	require.Eventually(t, func() bool { return len(onB.send) == 1 }, time.Second, 10*time.Millisecond)
}

func TestRelay_ReconnectsAfterBrokerLoss(t *testing.T) {
	bus := &fakeBus{}
	hubA, hubB := NewHub(), NewHub()
	relayA, err := newRelay(hubA, &fakeChannel{bus: bus}, DefaultExchange)
	require.NoError(t, err)

	first := &fakeChannel{bus: bus}
	relayB, err := newRelay(hubB, first, DefaultExchange)
	require.NoError(t, err)
	relayB.backoff = 10 * time.Millisecond

	var mu sync.Mutex
	dials := 0
	relayB.dial = func() (channel, io.Closer, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		if dials == 1 {
			return nil, nil, errors.New("connection refused")
		}
		return &fakeChannel{bus: bus}, nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- relayB.Run(ctx) }()
	require.Eventually(t, func() bool { return bus.bound() == 1 }, time.Second, 10*time.Millisecond)

	bus.drop(first.queue)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dials == 2 && bus.bound() == 1
	}, 2*time.Second, 10*time.Millisecond)

	onB := newTestClient("b", models.RoleNurse, 8)
	hubB.Register(onB, VehicleTopic("v1"))
	relayA.Publish(NewEvent(EventVehicleUpdate, map[string]string{"status": "AVAILABLE"}), VehicleTopic("v1"))
	require.Eventually(t, func() bool { return len(onB.send) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRelay_DiscardsMalformedBody(t *testing.T) {
	hub := NewHub()
	c := newTestClient("c", models.RoleNurse, 8)
	hub.Register(c)
	relay, err := newRelay(hub, &fakeChannel{bus: &fakeBus{}}, DefaultExchange)
	require.NoError(t, err)

	relay.deliver([]byte("{"))
	relay.deliver([]byte(`{"origin":"other","all":true,"event":"nope"}`))

	assert.Empty(t, drain(c))
}
