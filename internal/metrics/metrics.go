// Package metrics holds the process's prometheus collectors. Grounded on
// the call-site idiom in the teacher's indexer main (a package-level Vec
// registered once at startup and updated from call sites via
// WithLabelValues), since the teacher's own metrics package body was not
// part of the retrieved reference set.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// BuildInfo reports the running binary's version metadata, set to 1
	// once at startup.
	BuildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speedd_build_info",
		Help: "Build information, value is always 1.",
	}, []string{"version", "commit", "date"})

	// ActiveConnections is the number of currently open client
	// connections, by role (camera, dispatcher, unknown).
	ActiveConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speedd_active_connections",
		Help: "Currently open client connections by role.",
	}, []string{"role"})

	// ObservationsTotal counts plate observations ingested by the
	// aggregator.
	ObservationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "speedd_observations_total",
		Help: "Total plate observations ingested.",
	})

	// TicketsEmittedTotal counts tickets the aggregator decided to emit
	// (dispatched immediately or queued pending a dispatcher).
	TicketsEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "speedd_tickets_emitted_total",
		Help: "Total tickets emitted by the speeding detector.",
	})

	// TicketsPending is a gauge sampled from the aggregator's
	// PendingTickets store after each event.
	TicketsPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "speedd_tickets_pending",
		Help: "Tickets queued awaiting a dispatcher registration.",
	})

	// DispatcherRegistrationsTotal counts Register/Deregister events
	// processed, by kind.
	DispatcherRegistrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "speedd_dispatcher_registrations_total",
		Help: "Dispatcher registration events processed.",
	}, []string{"kind"})

	// ProtocolErrorsTotal counts connections terminated by a protocol
	// violation, by reason.
	ProtocolErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "speedd_protocol_errors_total",
		Help: "Connections terminated by protocol violation, by reason.",
	}, []string{"reason"})

	// HeartbeatsSentTotal counts Heartbeat messages written to clients.
	HeartbeatsSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "speedd_heartbeats_sent_total",
		Help: "Total heartbeat messages sent to clients.",
	})
)

// Register adds every collector above to reg. Call once at process
// startup before serving /metrics.
func Register(reg *prometheus.Registry) {
	reg.MustRegister(
		BuildInfo,
		ActiveConnections,
		ObservationsTotal,
		TicketsEmittedTotal,
		TicketsPending,
		DispatcherRegistrationsTotal,
		ProtocolErrorsTotal,
		HeartbeatsSentTotal,
	)
}
