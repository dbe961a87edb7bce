package aggregator

import (
	"github.com/marinuss/speedd/internal/wire"
)

// secondsPerDay is the integer-division boundary that defines a "day":
// timestamp / secondsPerDay, using the raw timestamp's epoch, not local
// time.
const secondsPerDay = 86400

// Observation is a single plate sighting forwarded by a camera's
// connection actor.
type Observation struct {
	Plate     wire.Plate
	Road      wire.Road
	Mile      wire.Mile
	Timestamp wire.Timestamp
	Limit     wire.Limit
}

func day(ts wire.Timestamp) int64 {
	return int64(ts) / secondsPerDay
}

func plateKey(p wire.Plate) string {
	return string(p)
}

// DispatcherEventKind distinguishes Register from Deregister events on the
// dispatcher-event queue.
type DispatcherEventKind int

const (
	// DispatcherRegister adds a handle for each listed road and drains any
	// pending tickets for those roads to it.
	DispatcherRegister DispatcherEventKind = iota
	// DispatcherDeregister removes every handle matching Addr from the
	// listed roads.
	DispatcherDeregister
)

// DispatcherEvent is one of the two variants above, distinguished by Kind.
type DispatcherEvent struct {
	Kind  DispatcherEventKind
	Addr  string
	Roads wire.RoadList

	// Tickets and Done are only set for DispatcherRegister. Done must be
	// closed by the owning connection actor when the connection ends, so
	// the Aggregator can stop routing to it instead of blocking forever.
	Tickets chan<- wire.TicketMsg
	Done    <-chan struct{}
}
