package aggregator

import "github.com/marinuss/speedd/internal/wire"

// speedingPair is a sorted candidate pair (timestamp1 < timestamp2) and its
// average speed in hundredths of mph.
type speedingPair struct {
	mile1, mile2         wire.Mile
	timestamp1, timestamp2 wire.Timestamp
	avgHundredths        int64
}

// evaluatePair computes the sorted pair and average speed between two
// observations of the same plate and road. It returns ok=false when the
// timestamps are equal (average speed is undefined, per spec.md §4.2).
func evaluatePair(mileA wire.Mile, tsA wire.Timestamp, mileB wire.Mile, tsB wire.Timestamp) (pair speedingPair, ok bool) {
	if tsA == tsB {
		return speedingPair{}, false
	}

	m1, t1, m2, t2 := mileA, tsA, mileB, tsB
	if t2 < t1 {
		m1, m2 = m2, m1
		t1, t2 = t2, t1
	}

	var milesDiff int64
	if m2 > m1 {
		milesDiff = int64(m2) - int64(m1)
	} else {
		milesDiff = int64(m1) - int64(m2)
	}
	deltaSeconds := int64(t2) - int64(t1)

	// hundredths of mph = miles * 3600 * 100 / seconds
	avg := milesDiff * 360_000 / deltaSeconds

	return speedingPair{
		mile1: m1, timestamp1: t1,
		mile2: m2, timestamp2: t2,
		avgHundredths: avg,
	}, true
}

// isSpeeding reports whether the pair's average speed strictly exceeds the
// limit (in whole mph).
func (p speedingPair) isSpeeding(limit wire.Limit) bool {
	return p.avgHundredths > int64(limit)*100
}

func (p speedingPair) ticket(plate wire.Plate, road wire.Road) wire.TicketMsg {
	return wire.TicketMsg{
		Plate:      append(wire.Plate(nil), plate...),
		Road:       road,
		Mile1:      p.mile1,
		Timestamp1: p.timestamp1,
		Mile2:      p.mile2,
		Timestamp2: p.timestamp2,
		Speed:      wire.Speed(p.avgHundredths),
	}
}
