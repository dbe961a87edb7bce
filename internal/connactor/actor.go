// Package connactor implements the per-connection state machine: role
// classification (Camera/Dispatcher), inbound message dispatch, heartbeat
// timer, and outbound ticket delivery, multiplexed over one socket.
// Grounded on original_source/problem_6/src/clients/mod.rs for the
// tokio::select!-style read/heartbeat/ticket multiplex, translated to a Go
// select over channels, and on indexer/pkg/geoip/view.go for the
// clockwork-driven ticker loop idiom.
package connactor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/marinuss/speedd/internal/aggregator"
	"github.com/marinuss/speedd/internal/metrics"
	"github.com/marinuss/speedd/internal/wire"
)

// EventSink is the subset of *aggregator.Aggregator an Actor needs. An
// interface here keeps the actor testable without a live Aggregator.
type EventSink interface {
	Observations() chan<- aggregator.Observation
	DispatcherEvents() chan<- aggregator.DispatcherEvent
}

// Config configures an Actor.
type Config struct {
	Conn   net.Conn
	Sink   EventSink
	Logger *slog.Logger
	Clock  clockwork.Clock

	// TicketBuffer sizes the actor's personal inbound ticket channel.
	TicketBuffer int
}

func (c *Config) Validate() error {
	if c.Conn == nil {
		return errors.New("conn is required")
	}
	if c.Sink == nil {
		return errors.New("sink is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.TicketBuffer <= 0 {
		c.TicketBuffer = 128
	}
	return nil
}

// Actor owns one accepted connection: its decoder, its writer half, a
// ClientRole cell, a heartbeat-requested flag, and (once the role becomes
// Dispatcher) a personal inbound ticket channel.
type Actor struct {
	id     string
	conn   net.Conn
	dec    *wire.Decoder
	enc    *wire.Encoder
	sink   EventSink
	log    *slog.Logger
	clock  clockwork.Clock

	role               clientRole
	heartbeatRequested bool
	pendingTicker      clockwork.Ticker

	tickets chan wire.TicketMsg
	done    chan struct{}
}

// New constructs an Actor for an already-accepted connection.
func New(cfg Config) (*Actor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	id := uuid.New().String()
	return &Actor{
		id:      id,
		conn:    cfg.Conn,
		dec:     wire.NewDecoder(cfg.Conn),
		enc:     wire.NewEncoder(cfg.Conn),
		sink:    cfg.Sink,
		log:     cfg.Logger.With("conn", id, "remote", cfg.Conn.RemoteAddr().String()),
		clock:   cfg.Clock,
		tickets: make(chan wire.TicketMsg, cfg.TicketBuffer),
		done:    make(chan struct{}),
	}, nil
}

// Run drives the actor until the connection ends or ctx is cancelled. It
// always closes the underlying connection before returning.
func (a *Actor) Run(ctx context.Context) error {
	metrics.ActiveConnections.WithLabelValues("unknown").Inc()
	defer func() { metrics.ActiveConnections.WithLabelValues(a.role.String()).Dec() }()
	defer a.conn.Close()
	defer close(a.done)
	defer a.deregisterIfDispatcher(context.Background())

	a.log.Info("connection accepted")

	msgCh := make(chan any)
	errCh := make(chan error, 1)
	go a.readLoop(msgCh, errCh)

	var ticker clockwork.Ticker
	var tickerChan <-chan time.Time
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
		}
	}
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("connection closing: context cancelled")
			return nil

		case err := <-errCh:
			if errors.Is(err, io.EOF) {
				a.log.Info("connection closed by peer")
				return nil
			}
			var perr *wire.ProtocolError
			if errors.As(err, &perr) {
				a.log.Warn("protocol violation", "reason", perr.Reason)
				metrics.ProtocolErrorsTotal.WithLabelValues(perr.Reason).Inc()
				a.sendErrorBestEffort(perr.Reason)
				return nil
			}
			a.log.Warn("transport error", "error", err)
			return nil

		case msg := <-msgCh:
			if fatalReason, ok := a.handleMessage(ctx, msg); !ok {
				a.log.Warn("protocol violation", "reason", fatalReason)
				metrics.ProtocolErrorsTotal.WithLabelValues(fatalReason).Inc()
				a.sendErrorBestEffort(fatalReason)
				return nil
			}

		case <-tickerChan:
			if err := a.enc.EncodeHeartbeat(); err != nil {
				a.log.Warn("failed to write heartbeat", "error", err)
				return nil
			}
			metrics.HeartbeatsSentTotal.Inc()

		case t := <-a.tickets:
			if err := a.enc.EncodeTicket(t); err != nil {
				a.log.Warn("failed to write ticket", "error", err)
				return nil
			}
		}

		if ticker == nil && a.pendingTicker != nil {
			ticker = a.pendingTicker
			tickerChan = ticker.Chan()
			a.pendingTicker = nil
		}
	}
}

func (a *Actor) readLoop(msgCh chan<- any, errCh chan<- error) {
	for {
		msg, err := a.dec.Next()
		if err != nil {
			errCh <- err
			return
		}
		select {
		case msgCh <- msg:
		case <-a.done:
			return
		}
	}
}

// handleMessage applies one decoded message to the actor's state machine.
// ok is false when the message is a protocol violation; reason is the
// human-readable Error text to send before closing.
func (a *Actor) handleMessage(ctx context.Context, msg any) (reason string, ok bool) {
	switch m := msg.(type) {
	case wire.IAmCameraMsg:
		if a.role.kind != roleUnknown {
			return "already identified as " + a.role.String(), false
		}
		a.role = clientRole{kind: roleCamera, camera: cameraRole{road: m.Road, mile: m.Mile, limit: m.Limit}}
		metrics.ActiveConnections.WithLabelValues("unknown").Dec()
		metrics.ActiveConnections.WithLabelValues("camera").Inc()
		a.log.Info("identified as camera", "road", m.Road, "mile", m.Mile, "limit", m.Limit)
		return "", true

	case wire.IAmDispatcherMsg:
		if a.role.kind != roleUnknown {
			return "already identified as " + a.role.String(), false
		}
		a.role = clientRole{kind: roleDispatcher, dispatcher: dispatcherRole{roads: m.Roads}}
		metrics.ActiveConnections.WithLabelValues("unknown").Dec()
		metrics.ActiveConnections.WithLabelValues("dispatcher").Inc()
		a.log.Info("identified as dispatcher", "roads", m.Roads)
		a.registerDispatcher(ctx, m.Roads)
		return "", true

	case wire.WantHeartbeatMsg:
		if a.heartbeatRequested {
			return "heartbeat already requested", false
		}
		a.heartbeatRequested = true
		if m.Interval > 0 {
			period := time.Duration(m.Interval) * 100 * time.Millisecond
			a.pendingTicker = a.clock.NewTicker(period)
			a.log.Info("heartbeat requested", "interval_deciseconds", m.Interval, "period", period)
		} else {
			a.log.Info("heartbeat disabled (interval 0)")
		}
		return "", true

	case wire.PlateMsg:
		if a.role.kind != roleCamera {
			return "plate reported by non-camera connection", false
		}
		obs := aggregator.Observation{
			Plate:     m.Plate,
			Road:      a.role.camera.road,
			Mile:      a.role.camera.mile,
			Timestamp: m.Timestamp,
			Limit:     a.role.camera.limit,
		}
		select {
		case a.sink.Observations() <- obs:
		case <-ctx.Done():
		}
		return "", true

	default:
		return fmt.Sprintf("unexpected message type %T", msg), false
	}
}

func (a *Actor) registerDispatcher(ctx context.Context, roads wire.RoadList) {
	select {
	case a.sink.DispatcherEvents() <- aggregator.DispatcherEvent{
		Kind:    aggregator.DispatcherRegister,
		Addr:    a.id,
		Roads:   roads,
		Tickets: a.tickets,
		Done:    a.done,
	}:
	case <-ctx.Done():
	}
}

func (a *Actor) deregisterIfDispatcher(ctx context.Context) {
	if a.role.kind != roleDispatcher {
		return
	}
	select {
	case a.sink.DispatcherEvents() <- aggregator.DispatcherEvent{
		Kind:  aggregator.DispatcherDeregister,
		Addr:  a.id,
		Roads: a.role.dispatcher.roads,
	}:
	case <-ctx.Done():
	}
}

func (a *Actor) sendErrorBestEffort(reason string) {
	if len(reason) > wire.MaxErrorLen {
		reason = reason[:wire.MaxErrorLen]
	}
	if err := a.enc.EncodeError(reason); err != nil {
		a.log.Debug("failed to send error message before close", "error", err)
	}
}
