// Package aggregator is the single-writer authority over observations,
// ticket bookkeeping, and dispatcher routing. It is grounded on the
// teacher's Config+Validate()+Run(ctx) shape
// (indexer/pkg/indexer/config.go, indexer/pkg/geoip/view.go) and on
// original_source/problem_6/src/manager.rs for the speeding-detection and
// ticket-routing algorithm itself.
package aggregator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/marinuss/speedd/internal/metrics"
	"github.com/marinuss/speedd/internal/wire"
)

// Config configures an Aggregator. Buffer sizes default to 128, the
// minimum target capacity spec.md §5 asks for.
type Config struct {
	Logger *slog.Logger

	// ObservationBuffer and DispatcherEventBuffer size the two inbound
	// event channels.
	ObservationBuffer     int
	DispatcherEventBuffer int
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.ObservationBuffer <= 0 {
		c.ObservationBuffer = 128
	}
	if c.DispatcherEventBuffer <= 0 {
		c.DispatcherEventBuffer = 128
	}
	return nil
}

// Aggregator owns ObservationStore, TicketLedger, DispatcherRegistry, and
// PendingTickets. All mutation happens on the goroutine running Run; there
// is exactly one writer, so no lock guards this state (spec.md §5).
type Aggregator struct {
	log *slog.Logger

	observations     chan Observation
	dispatcherEvents chan DispatcherEvent

	store    *observationStore
	ledger   *ticketLedger
	registry *dispatcherRegistry
	pending  *pendingTickets
}

// New constructs an Aggregator. Call Observations() and DispatcherEvents()
// to get the send-side channels connection actors use, then run Run(ctx)
// on its own goroutine.
func New(cfg Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{
		log:              cfg.Logger,
		observations:     make(chan Observation, cfg.ObservationBuffer),
		dispatcherEvents: make(chan DispatcherEvent, cfg.DispatcherEventBuffer),
		store:            newObservationStore(),
		ledger:           newTicketLedger(),
		registry:         newDispatcherRegistry(),
		pending:          newPendingTickets(),
	}, nil
}

// Observations returns the send-side channel camera connections post
// sightings to.
func (a *Aggregator) Observations() chan<- Observation { return a.observations }

// DispatcherEvents returns the send-side channel dispatcher connections
// post Register/Deregister events to.
func (a *Aggregator) DispatcherEvents() chan<- DispatcherEvent { return a.dispatcherEvents }

// Run drains both event queues until ctx is cancelled. It never returns an
// error for a processing failure — individual bad sends are logged and
// dropped, per spec.md §7's local-first propagation policy — only ctx
// cancellation ends the loop.
func (a *Aggregator) Run(ctx context.Context) error {
	a.log.Info("aggregator started")
	for {
		select {
		case <-ctx.Done():
			a.log.Info("aggregator stopping")
			return nil
		case obs := <-a.observations:
			a.handleObservation(obs)
		case ev := <-a.dispatcherEvents:
			a.handleDispatcherEvent(ev)
		}
	}
}

func (a *Aggregator) handleObservation(obs Observation) {
	metrics.ObservationsTotal.Inc()

	prior := a.store.milesFor(obs.Plate, obs.Road)
	var best speedingPair
	found := false
	for mile, ts := range prior {
		pair, ok := evaluatePair(obs.Mile, obs.Timestamp, mile, ts)
		if !ok {
			continue
		}
		a.log.Debug("candidate pair evaluated",
			"plate", obs.Plate.String(), "road", obs.Road,
			"mile1", pair.mile1, "mile2", pair.mile2,
			"avg_hundredths", pair.avgHundredths, "limit", obs.Limit)
		if pair.isSpeeding(obs.Limit) && (!found || pair.avgHundredths > best.avgHundredths) {
			best, found = pair, true
		}
	}

	if found {
		d1, d2 := day(best.timestamp1), day(best.timestamp2)
		if !a.ledger.intersects(obs.Plate, d1, d2) {
			a.ledger.cover(obs.Plate, d1, d2)
			ticket := best.ticket(obs.Plate, obs.Road)
			a.log.Info("ticket emitted", "plate", obs.Plate.String(), "road", obs.Road, "speed", ticket.Speed)
			metrics.TicketsEmittedTotal.Inc()
			a.route(ticket)
		} else {
			a.log.Debug("ticket suppressed: day already ticketed",
				"plate", obs.Plate.String(), "road", obs.Road, "day1", d1, "day2", d2)
		}
	}

	// Store the observation after evaluation regardless of outcome: the
	// spec keeps observations around even across a ticketed day (see
	// SPEC_FULL.md's "post-ticket observation retention" decision).
	a.store.record(obs.Plate, obs.Road, obs.Mile, obs.Timestamp)

	metrics.TicketsPending.Set(float64(a.pending.count()))
}

func (a *Aggregator) route(t wire.TicketMsg) {
	handle, ok := a.registry.pick(t.Road)
	if !ok {
		a.pending.add(t.Road, t)
		return
	}
	// spec.md §5 explicitly permits blocking on a slow dispatcher in
	// exchange for never losing a ticket; Done lets a torn-down connection
	// unblock this select instead of wedging ingest forever.
	select {
	case handle.tickets <- t:
	case <-handle.done:
		a.log.Warn("dispatcher gone, re-queuing ticket", "road", t.Road, "addr", handle.addr)
		a.registry.deregister(handle.addr, t.Road)
		a.pending.add(t.Road, t)
	}
}

func (a *Aggregator) handleDispatcherEvent(ev DispatcherEvent) {
	switch ev.Kind {
	case DispatcherRegister:
		metrics.DispatcherRegistrationsTotal.WithLabelValues("register").Inc()
		for _, road := range ev.Roads {
			a.registry.register(ev.Addr, road, ev.Tickets, ev.Done)
			for _, t := range a.pending.drain(road) {
				select {
				case ev.Tickets <- t:
				case <-ev.Done:
					a.log.Warn("dispatcher gone before pending ticket delivered, re-queuing", "road", road)
					a.pending.add(road, t)
				}
			}
		}
		a.log.Info("dispatcher registered", "addr", ev.Addr, "roads", ev.Roads)
	case DispatcherDeregister:
		metrics.DispatcherRegistrationsTotal.WithLabelValues("deregister").Inc()
		for _, road := range ev.Roads {
			a.registry.deregister(ev.Addr, road)
		}
		a.log.Info("dispatcher deregistered", "addr", ev.Addr, "roads", ev.Roads)
	}
	metrics.TicketsPending.Set(float64(a.pending.count()))
}
