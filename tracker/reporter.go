package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/realtime"
)

const replyWait = 10 * time.Second

// PositionSource yields the current position of the vehicle
type PositionSource interface {
	Position(ctx context.Context) (models.Coordinate, error)
}

// StaticSource always reports the same position
type StaticSource models.Coordinate

// Position returns the fixed coordinate
func (s StaticSource) Position(context.Context) (models.Coordinate, error) {
	return models.Coordinate(s), nil
}

// FileSource reads a "lat,lng" line that a GPS daemon keeps up to date
type FileSource string

// Position reads and decodes the file
func (f FileSource) Position(context.Context) (models.Coordinate, error) {
	b, err := os.ReadFile(string(f))
	if err != nil {
		return models.Coordinate{}, err
	}
	return Decode(strings.TrimSpace(string(b)))
}

// ReporterConfig configures a crew reporter
type ReporterConfig struct {
	URL       string
	Token     string
	VehicleID string
	Interval  time.Duration
}

// Reporter pushes the vehicle position to the gateway on a schedule and waits
// for each report to be acknowledged.
type Reporter struct {
	conf   ReporterConfig
	source PositionSource
	dialer *websocket.Dialer
	cron   *cron.Cron

	mu   sync.Mutex
	conn *gatewayConn
}

// gatewayConn is one session with the gateway. A background reader answers
// pings and hands acks and nacks to the report waiting for them.
type gatewayConn struct {
	ws   *websocket.Conn
	done chan struct{}
	err  error

	mu      sync.Mutex
	pending map[string]chan inboundReply
}

type inboundReply struct {
	nack  bool
	reply realtime.Reply
}

// NewReporter creates a reporter. A zero interval means every 60 seconds.
func NewReporter(conf ReporterConfig, source PositionSource) *Reporter {
	if conf.Interval <= 0 {
		conf.Interval = 60 * time.Second
	}
	return &Reporter{
		conf:   conf,
		source: source,
		dialer: websocket.DefaultDialer,
		cron:   cron.New(cron.WithLocation(time.UTC)),
	}
}

// Run reports immediately and then on every interval until ctx is done
func (r *Reporter) Run(ctx context.Context) error {
	_, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.conf.Interval), func() {
		if err := r.Report(ctx); err != nil {
			zap.S().Warnw("position report failed", "vehicle", r.conf.VehicleID, "error", err)
		}
	})
	if err != nil {
		return err
	}
	if err := r.Report(ctx); err != nil {
		zap.S().Warnw("position report failed", "vehicle", r.conf.VehicleID, "error", err)
	}

	r.cron.Start()
	zap.S().Infow("position reporter started", "vehicle", r.conf.VehicleID, "interval", r.conf.Interval.String())
	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.Close()
	zap.S().Info("position reporter stopped")
	return nil
}

// Report sends one position and waits for the ack. A broken connection is
// dropped so the next report dials again.
func (r *Reporter) Report(ctx context.Context) error {
	pos, err := r.source.Position(ctx)
	if err != nil {
		return fmt.Errorf("failed to read position: %w", err)
	}
	if !pos.Valid() {
		return models.ErrInvalidCoordinate
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil && r.conn.closed() {
		r.conn = nil
	}
	if r.conn == nil {
		conn, err := r.connect(ctx)
		if err != nil {
			return err
		}
		r.conn = conn
	}
	if err := r.send(ctx, pos); err != nil {
		_ = r.conn.ws.Close()
		r.conn = nil
		return err
	}
	return nil
}

func (r *Reporter) connect(ctx context.Context) (*gatewayConn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+r.conf.Token)
	ws, _, err := r.dialer.DialContext(ctx, r.conf.URL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gateway: %w", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(replyWait))
	var ev struct {
		Name string `json:"event"`
	}
	if err := ws.ReadJSON(&ev); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("gateway closed the connection: %w", err)
	}
	if ev.Name != realtime.EventAuthenticated {
		_ = ws.Close()
		return nil, fmt.Errorf("unexpected first event %q", ev.Name)
	}
	_ = ws.SetReadDeadline(time.Time{})

	c := &gatewayConn{
		ws:      ws,
		done:    make(chan struct{}),
		pending: make(map[string]chan inboundReply),
	}
	go c.readLoop()
	return c, nil
}

func (r *Reporter) send(ctx context.Context, pos models.Coordinate) error {
	data, err := json.Marshal(realtime.LocationPayload{
		VehicleID: r.conf.VehicleID,
		Lat:       pos.Latitude,
		Lng:       pos.Longitude,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	msg := realtime.Inbound{ID: uuid.New().String(), Event: realtime.EventLocationUpdate, Data: data}

	replies := r.conn.expect(msg.ID)
	defer r.conn.forget(msg.ID)

	_ = r.conn.ws.SetWriteDeadline(time.Now().Add(replyWait))
	if err := r.conn.ws.WriteJSON(msg); err != nil {
		return err
	}

	timer := time.NewTimer(replyWait)
	defer timer.Stop()
	select {
	case in := <-replies:
		if in.nack {
			return errors.New("gateway rejected position: " + in.reply.Error)
		}
		return nil
	case <-r.conn.done:
		return fmt.Errorf("gateway connection lost: %w", r.conn.err)
	case <-timer.C:
		return errors.New("timed out waiting for the gateway to acknowledge")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop keeps reading until the connection fails. Reading is what lets
// the websocket library answer the gateway's pings between reports.
func (c *gatewayConn) readLoop() {
	defer close(c.done)
	for {
		var ev struct {
			Name string          `json:"event"`
			Data json.RawMessage `json:"data"`
		}
		if err := c.ws.ReadJSON(&ev); err != nil {
			c.err = err
			return
		}
		if ev.Name != realtime.EventAck && ev.Name != realtime.EventNack {
			continue
		}
		var reply realtime.Reply
		if err := json.Unmarshal(ev.Data, &reply); err != nil {
			continue
		}
		c.mu.Lock()
		ch := c.pending[reply.ID]
		delete(c.pending, reply.ID)
		c.mu.Unlock()
		if ch != nil {
			ch <- inboundReply{nack: ev.Name == realtime.EventNack, reply: reply}
		}
	}
}

func (c *gatewayConn) expect(id string) <-chan inboundReply {
	ch := make(chan inboundReply, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *gatewayConn) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *gatewayConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close drops the gateway connection
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		_ = r.conn.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = r.conn.ws.Close()
		r.conn = nil
	}
}
