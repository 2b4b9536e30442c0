// Package route implements the Route manager: a per-route state machine
// driving two endpoint.Endpoint objects (a source and a sink) through
// construction, deterioration classification, suspension, retry, and
// resume, composed over the endpoint.Builder collaborator.
package route

import (
	"github.com/cenkalti/backoff"

	"github.com/unicens-project/ucs-go/internal/observer"
	"github.com/unicens-project/ucs-go/internal/timer"
	"github.com/unicens-project/ucs-go/pkg/endpoint"
)

// State is a Route's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConstruction
	StateBuilt
	StateDeteriorated
	StateDestruction
	StateSuspended
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConstruction:
		return "Construction"
	case StateBuilt:
		return "Built"
	case StateDeteriorated:
		return "Deteriorated"
	case StateDestruction:
		return "Destruction"
	case StateSuspended:
		return "Suspended"
	default:
		return "Unknown"
	}
}

// LastResult is the route-level classification of the most recent
// endpoint result.
type LastResult int

const (
	LastResultNone LastResult = iota
	LastResultUncritical
	LastResultCritical
)

// EventKind identifies which lifecycle notification a Route delivers.
type EventKind int

const (
	EventRouteBuilt EventKind = iota
	EventRouteDestroyed
	EventRouteSuspended
	EventProcessStop
)

// Event is delivered on a Route's Events subject.
type Event struct {
	Kind  EventKind
	Route *Route
}

// Return is the synchronous return code for route-manager calls.
type Return int

const (
	Success Return = iota
	ErrAlreadySet
	ErrParam
	ErrNotAvailable
	ErrNotInitialized
)

// Node is a ring node an endpoint lives on. Available is set/cleared by
// discovery or application policy and gates route activation on that
// node.
type Node struct {
	ID        any
	Available bool
}

// Route is a pair (source endpoint, sink endpoint) plus activation state.
// The caller owns Route's storage and the two Endpoint objects it
// references; the Route owns its own Events subject.
type Route struct {
	Source *endpoint.Endpoint
	Sink   *endpoint.Endpoint
	ID     uint32

	Active     bool
	State      State
	LastResult LastResult

	RetryCounter uint32

	Events observer.Subject

	sourceReleased    bool
	notifyTermination bool

	// retryBackoff paces Uncritical-retry reconstruction attempts so a
	// flapping node doesn't spin the route manager in a tight rebuild
	// loop; it grows on every Deteriorated→Idle retry and resets once the
	// route reaches Built.
	retryBackoff backoff.BackOff
	retryPending bool
	retryTimer   timer.Timer

	srcObs  endpointObserver
	sinkObs endpointObserver
}

// ConnectionLabel returns the route's connection label; non-zero only
// when the route is Built.
func (r *Route) ConnectionLabel() uint16 {
	if r.State != StateBuilt || r.Source == nil {
		return 0
	}
	return r.Source.ConnectionLabel
}

func (r *Route) notify(kind EventKind) {
	r.Events.Notify(Event{Kind: kind, Route: r})
}

// endpointObserver bridges an Endpoint's Subject notifications back to
// the owning Route and Manager so the per-route state machine can react
// on the next tick.
type endpointObserver struct {
	route *Route
	mgr   *Manager
	which which
}

type which int

const (
	whichSource which = iota
	whichSink
)

func (o endpointObserver) Notify(data any) {
	res, ok := data.(endpoint.Result)
	if !ok {
		return
	}
	ep := o.route.Source
	if o.which == whichSink {
		ep = o.route.Sink
	}
	res.Severity = o.mgr.classify(o.route, res)
	ep.LastResult = res
	switch {
	case res.Success && res.Op == endpoint.OpBuild:
		ep.State = endpoint.StateBuilt
	case res.Success && res.Op == endpoint.OpDestroy:
		ep.State = endpoint.StateIdle
		ep.ConnectionLabel = 0
	default:
		// failure: ep keeps its current state (XrmProcessing during a
		// build, Built for a failure reported later); the next step reads
		// the Severity classified above and either resets the endpoint
		// (Uncritical during Construction) or deteriorates the route.
	}
	o.mgr.wake()
}
