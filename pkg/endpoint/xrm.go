package endpoint

// Builder is the Extended Resource Manager collaborator surface. The
// core never builds a socket/port/connection itself — it asks Builder
// and observes the Result delivered later on the Endpoint's Subject.
//
// All three methods are fire-and-forget from the caller's perspective:
// they kick off async XRM work and return immediately. Builder is
// responsible for eventually notifying ep.Subject with a Result.
type Builder interface {
	// BuildSource starts building a source endpoint. On completion,
	// Builder notifies ep.Subject with Result{Op: OpBuild}.
	BuildSource(ep *Endpoint)

	// BuildSink starts building a sink endpoint bound to connLabel (the
	// source's connection label, propagated by the route manager once
	// the source is Built). On completion, Builder notifies ep.Subject
	// with Result{Op: OpBuild}.
	BuildSink(ep *Endpoint, connLabel uint16)

	// Destroy tears down ep's device-side resources. On completion,
	// Builder notifies ep.Subject with Result{Op: OpDestroy}.
	Destroy(ep *Endpoint)

	// ReleaseNode is called when a node transitions to unavailable, so
	// Builder can release any device-side resources claimed on it without
	// waiting for individual endpoint Destroy calls.
	ReleaseNode(nodeRef any)
}

// Manager mediates between the Endpoint state machine and a Builder. It
// is intentionally thin: almost all of the interesting logic is the
// per-route state machine in pkg/route, which calls these methods
// directly on the endpoints it owns. Manager exists to give a single
// place to swap Builder implementations (e.g. a test fake) without
// threading the interface through every route.
type Manager struct {
	builder Builder
}

// NewManager creates a Manager bound to builder.
func NewManager(builder Builder) *Manager {
	return &Manager{builder: builder}
}

// BuildSource transitions ep to XrmProcessing and asks Builder to build
// it as a source. ep's LastResult is cleared first, so a deadlock
// resolver evaluating ep on a later tick only ever sees this attempt's
// own outcome, never a prior attempt's stale classification.
func (m *Manager) BuildSource(ep *Endpoint) {
	ep.LastResult = Result{}
	ep.State = StateXrmProcessing
	m.builder.BuildSource(ep)
}

// BuildSink transitions ep to XrmProcessing and asks Builder to build it
// as a sink bound to connLabel. See BuildSource on the LastResult clear.
func (m *Manager) BuildSink(ep *Endpoint, connLabel uint16) {
	ep.LastResult = Result{}
	ep.State = StateXrmProcessing
	m.builder.BuildSink(ep, connLabel)
}

// Destroy transitions ep to XrmProcessing and asks Builder to tear it
// down. See BuildSource on the LastResult clear.
func (m *Manager) Destroy(ep *Endpoint) {
	ep.LastResult = Result{}
	ep.State = StateXrmProcessing
	m.builder.Destroy(ep)
}

// ReleaseNode notifies Builder that nodeRef went unavailable.
func (m *Manager) ReleaseNode(nodeRef any) {
	m.builder.ReleaseNode(nodeRef)
}
