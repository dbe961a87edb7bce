package connactor

import "github.com/marinuss/speedd/internal/wire"

// roleKind is the tagged variant spec.md §9 calls for in place of an
// inheritance-based client hierarchy.
type roleKind int

const (
	roleUnknown roleKind = iota
	roleCamera
	roleDispatcher
)

type cameraRole struct {
	road  wire.Road
	mile  wire.Mile
	limit wire.Limit
}

type dispatcherRole struct {
	roads wire.RoadList
}

// clientRole is { Unknown | Camera{road,mile,limit} | Dispatcher{roads} }.
type clientRole struct {
	kind       roleKind
	camera     cameraRole
	dispatcher dispatcherRole
}

func (r clientRole) String() string {
	switch r.kind {
	case roleCamera:
		return "camera"
	case roleDispatcher:
		return "dispatcher"
	default:
		return "unknown"
	}
}
