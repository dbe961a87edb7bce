package aggregator

import "github.com/marinuss/speedd/internal/wire"

// observationStore is plate -> road -> mile -> timestamp. Insertion order
// within the mile map is irrelevant (spec.md §3); last write for a given
// mile wins, which is the documented mile-collision open question.
type observationStore struct {
	byPlate map[string]map[wire.Road]map[wire.Mile]wire.Timestamp
}

func newObservationStore() *observationStore {
	return &observationStore{byPlate: make(map[string]map[wire.Road]map[wire.Mile]wire.Timestamp)}
}

// milesFor returns the mile->timestamp map for (plate, road), or nil if
// nothing has been recorded yet. The returned map must not be retained
// past the current event handling, since the Aggregator may mutate it
// immediately after.
func (s *observationStore) milesFor(plate wire.Plate, road wire.Road) map[wire.Mile]wire.Timestamp {
	roads, ok := s.byPlate[plateKey(plate)]
	if !ok {
		return nil
	}
	return roads[road]
}

func (s *observationStore) record(plate wire.Plate, road wire.Road, mile wire.Mile, ts wire.Timestamp) {
	pk := plateKey(plate)
	roads, ok := s.byPlate[pk]
	if !ok {
		roads = make(map[wire.Road]map[wire.Mile]wire.Timestamp)
		s.byPlate[pk] = roads
	}
	miles, ok := roads[road]
	if !ok {
		miles = make(map[wire.Mile]wire.Timestamp)
		roads[road] = miles
	}
	miles[mile] = ts
}

// ticketLedger is plate -> set of days already covered by an emitted
// ticket. Once a day is recorded, no further ticket whose interval
// intersects it is ever emitted.
type ticketLedger struct {
	daysByPlate map[string]map[int64]struct{}
}

func newTicketLedger() *ticketLedger {
	return &ticketLedger{daysByPlate: make(map[string]map[int64]struct{})}
}

// intersects reports whether any day in [d1, d2] is already ticketed for
// plate.
func (l *ticketLedger) intersects(plate wire.Plate, d1, d2 int64) bool {
	days, ok := l.daysByPlate[plateKey(plate)]
	if !ok {
		return false
	}
	for d := d1; d <= d2; d++ {
		if _, ticketed := days[d]; ticketed {
			return true
		}
	}
	return false
}

// cover records every day in [d1, d2] as ticketed for plate.
func (l *ticketLedger) cover(plate wire.Plate, d1, d2 int64) {
	pk := plateKey(plate)
	days, ok := l.daysByPlate[pk]
	if !ok {
		days = make(map[int64]struct{})
		l.daysByPlate[pk] = days
	}
	for d := d1; d <= d2; d++ {
		days[d] = struct{}{}
	}
}

// dispatcherHandle is one registered dispatcher connection.
type dispatcherHandle struct {
	addr    string
	tickets chan<- wire.TicketMsg
	done    <-chan struct{}
}

// dispatcherRegistry is road -> ordered list of handles. Multiple
// dispatchers may register the same road; routing picks the
// most-recently-registered one, an arbitrary but deterministic choice per
// spec.md §4.2.
type dispatcherRegistry struct {
	byRoad map[wire.Road][]dispatcherHandle
}

func newDispatcherRegistry() *dispatcherRegistry {
	return &dispatcherRegistry{byRoad: make(map[wire.Road][]dispatcherHandle)}
}

func (r *dispatcherRegistry) register(addr string, road wire.Road, tickets chan<- wire.TicketMsg, done <-chan struct{}) {
	r.byRoad[road] = append(r.byRoad[road], dispatcherHandle{addr: addr, tickets: tickets, done: done})
}

func (r *dispatcherRegistry) deregister(addr string, road wire.Road) {
	handles := r.byRoad[road]
	for i, h := range handles {
		if h.addr == addr {
			r.byRoad[road] = append(handles[:i], handles[i+1:]...)
			return
		}
	}
}

// pick returns the most-recently-registered handle for road, if any.
func (r *dispatcherRegistry) pick(road wire.Road) (dispatcherHandle, bool) {
	handles := r.byRoad[road]
	if len(handles) == 0 {
		return dispatcherHandle{}, false
	}
	return handles[len(handles)-1], true
}

// pendingTickets is road -> tickets waiting on a dispatcher to register.
type pendingTickets struct {
	byRoad map[wire.Road][]wire.TicketMsg
}

func newPendingTickets() *pendingTickets {
	return &pendingTickets{byRoad: make(map[wire.Road][]wire.TicketMsg)}
}

func (p *pendingTickets) add(road wire.Road, t wire.TicketMsg) {
	p.byRoad[road] = append(p.byRoad[road], t)
}

func (p *pendingTickets) drain(road wire.Road) []wire.TicketMsg {
	tickets := p.byRoad[road]
	delete(p.byRoad, road)
	return tickets
}

func (p *pendingTickets) count() int {
	n := 0
	for _, ts := range p.byRoad {
		n += len(ts)
	}
	return n
}
