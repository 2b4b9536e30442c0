package route

import (
	"github.com/cenkalti/backoff"
	"github.com/pion/logging"

	"github.com/unicens-project/ucs-go/internal/eventhandler"
	"github.com/unicens-project/ucs-go/internal/observer"
	"github.com/unicens-project/ucs-go/internal/scheduler"
	"github.com/unicens-project/ucs-go/internal/timer"
	"github.com/unicens-project/ucs-go/pkg/endpoint"
	"github.com/unicens-project/ucs-go/pkg/netstatus"
)

// priority is where the route service sits in the scheduler's priority
// order: mid-range, ahead of any service registered at
// scheduler.LowestPriority. The timer list and Rx dispatch are not
// scheduler services; the host drives them directly.
const priority scheduler.Priority = 128

const evTick scheduler.Event = 1

// DefaultTickPeriodMs is the round-robin scan period.
const DefaultTickPeriodMs uint16 = 50

// Config configures a Manager.
type Config struct {
	Scheduler     *scheduler.Scheduler
	Timers        *timer.List
	Now           func() timer.Tick
	EventHandler  *eventhandler.Handler
	NetStatus     *netstatus.Cache
	Builder       endpoint.Builder
	LoggerFactory logging.LoggerFactory

	// TickPeriodMs overrides DefaultTickPeriodMs. 0 keeps the default.
	TickPeriodMs uint16
}

func (c *Config) applyDefaults() {
	if c.TickPeriodMs == 0 {
		c.TickPeriodMs = DefaultTickPeriodMs
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
}

// Manager is the Route manager: it owns a caller-supplied set of Routes,
// a round-robin scan timer, a node-availability table, and the XRM
// collaborator surface (via endpoint.Manager) that each Route's state
// machine drives.
type Manager struct {
	cfg Config
	log logging.LeveledLogger
	xrm *endpoint.Manager

	routes []*Route
	cursor int

	svc      *scheduler.Service
	tickTimer timer.Timer
	armed    bool

	nodes map[any]*Node
}

// New creates a Manager. cfg.Builder must be non-nil; cfg.Scheduler and
// cfg.Timers must be wired to the same event loop the rest of the runtime
// uses.
func New(cfg Config) (*Manager, error) {
	if cfg.Builder == nil {
		return nil, ErrNoBuilder
	}
	cfg.applyDefaults()
	m := &Manager{
		cfg:   cfg,
		xrm:   endpoint.NewManager(cfg.Builder),
		nodes: make(map[any]*Node),
	}
	if cfg.LoggerFactory != nil {
		m.log = cfg.LoggerFactory.NewLogger("route")
	}
	m.svc = cfg.Scheduler.AddService(priority, m, m.onScheduled)
	if cfg.EventHandler != nil {
		cfg.EventHandler.AddInternalObserver(observer.ObserverFunc(m.onInternalEvent))
	}
	if cfg.NetStatus != nil {
		cfg.NetStatus.AddStatusObserver(observer.ObserverFunc(m.onNetStatus))
	}
	return m, nil
}

// StartProcess installs the caller-owned route table and acquires each
// route's endpoints' observer hookup. Routes start Idle and inactive;
// Activate must be called per route to begin construction.
func (m *Manager) StartProcess(routes []*Route) Return {
	for _, r := range routes {
		if r.Source == nil || r.Sink == nil {
			return ErrParam
		}
		r.Source.Subject.Add(endpointObserver{route: r, mgr: m, which: whichSource})
		r.Sink.Subject.Add(endpointObserver{route: r, mgr: m, which: whichSink})
	}
	m.routes = routes
	m.cursor = 0
	return Success
}

// Activate marks r active and eligible for construction, and wakes the
// round-robin scan.
func (m *Manager) Activate(r *Route) Return {
	if r.Active {
		return ErrAlreadySet
	}
	r.Active = true
	r.notifyTermination = false
	m.wake()
	return Success
}

// Deactivate marks r inactive; if it is Built it begins tearing down.
func (m *Manager) Deactivate(r *Route) Return {
	if !r.Active {
		return ErrAlreadySet
	}
	r.Active = false
	m.wake()
	return Success
}

// GetAttachedRoutes returns every route currently in StateBuilt.
func (m *Manager) GetAttachedRoutes() []*Route {
	var out []*Route
	for _, r := range m.routes {
		if r.State == StateBuilt {
			out = append(out, r)
		}
	}
	return out
}

// GetConnectionLabel returns r's connection label, or 0 if r is not
// currently Built.
func (m *Manager) GetConnectionLabel(r *Route) uint16 {
	return r.ConnectionLabel()
}

// RegisterNode adds node to the table the Manager consults for endpoint
// eligibility. Nodes start available.
func (m *Manager) RegisterNode(id any) *Node {
	n := &Node{ID: id, Available: true}
	m.nodes[id] = n
	return n
}

// SetNodeAvailable updates a node's availability. Going unavailable force-
// resets any route with an endpoint on that node out of Suspended or a
// critically-failing Construction/Deteriorated state, releases the node's
// XRM resources, and returns it to Idle so it can rebuild once the node
// returns. Going available re-arms the round-robin scan so Idle routes
// waiting on this node retry promptly.
func (m *Manager) SetNodeAvailable(id any, available bool) Return {
	n, ok := m.nodes[id]
	if !ok {
		return ErrParam
	}
	n.Available = available
	if available {
		m.wake()
		return Success
	}

	m.xrm.ReleaseNode(id)
	for _, r := range m.routes {
		if !routeTouchesNode(r, id) {
			continue
		}
		switch r.State {
		case StateSuspended:
			m.forceResetToIdle(r)
		case StateConstruction, StateDeteriorated:
			if r.LastResult == LastResultCritical {
				m.forceResetToIdle(r)
			}
		}
	}
	return Success
}

func routeTouchesNode(r *Route, id any) bool {
	return (r.Source != nil && r.Source.NodeRef == id) || (r.Sink != nil && r.Sink.NodeRef == id)
}

func (m *Manager) forceResetToIdle(r *Route) {
	r.Source.ResetToIdle()
	r.Sink.ResetToIdle()
	r.sourceReleased = false
	r.State = StateIdle
	r.LastResult = LastResultNone
}

// onInternalEvent resets every transitional route (any state other than
// Idle, Built or Suspended) to Idle on a termination event, notifying
// ProcessStop at most once per route.
func (m *Manager) onInternalEvent(data any) {
	code, ok := data.(eventhandler.Code)
	if !ok || !eventhandler.IsTermination(code) {
		return
	}
	for _, r := range m.routes {
		if r.State == StateBuilt || r.State == StateIdle || r.State == StateSuspended {
			continue
		}
		m.forceResetToIdle(r)
		if !r.notifyTermination {
			r.notifyTermination = true
			r.notify(EventProcessStop)
		}
	}
	m.disarm()
}

// onNetStatus stops the round-robin scan while the ring is unavailable
// (nothing can build) and resumes it once the ring returns.
func (m *Manager) onNetStatus(data any) {
	ev, ok := data.(netstatus.ChangeEvent)
	if !ok || ev.Mask&netstatus.ChangeAvailability == 0 {
		return
	}
	if ev.Status.Availability == netstatus.AvailabilityAvailable {
		m.wake()
	} else {
		m.disarm()
	}
}

// wake requests a scheduler pass for the route service on its next idle
// opportunity, arming the periodic scan timer if it is not already
// running.
func (m *Manager) wake() {
	m.cfg.Scheduler.SetEvent(m.svc, evTick)
	m.arm()
}

func (m *Manager) arm() {
	if m.armed || m.cfg.Timers == nil || m.cfg.Now == nil {
		return
	}
	m.armed = true
	m.cfg.Timers.Set(&m.tickTimer, m.onTimerFire, nil, m.cfg.Now(), m.cfg.TickPeriodMs, m.cfg.TickPeriodMs)
}

func (m *Manager) disarm() {
	if !m.armed {
		return
	}
	m.armed = false
	m.cfg.Timers.Clear(&m.tickTimer)
}

func (m *Manager) onTimerFire(arg any, now timer.Tick) {
	m.cfg.Scheduler.SetEvent(m.svc, evTick)
}

func (m *Manager) onScheduled(events scheduler.Event) {
	anyEligible := m.tickOnce()
	if !anyEligible {
		m.disarm()
	}
}

// tickOnce runs next_route() once: it scans from the cursor for the next
// eligible route, advances it one step, and reports whether any route in
// the table is still eligible for future scanning (so the caller can stop
// the periodic timer when there is nothing left to do).
func (m *Manager) tickOnce() bool {
	if len(m.routes) == 0 {
		return false
	}
	idx, eligible := m.nextRoute()
	if idx >= 0 {
		m.step(m.routes[idx])
		m.cursor = (idx + 1) % len(m.routes)
	}
	return eligible
}

// nextRoute scans the route table once starting at the cursor, returning
// the index of the first eligible route (or -1 if none is eligible right
// now) and whether any route remains eligible for a future tick.
func (m *Manager) nextRoute() (int, bool) {
	n := len(m.routes)
	found := -1
	anyEligible := false
	for i := 0; i < n; i++ {
		idx := (m.cursor + i) % n
		r := m.routes[idx]
		if !m.eligible(r) {
			continue
		}
		anyEligible = true
		if found < 0 {
			found = idx
		}
	}
	return found, anyEligible
}

// eligible implements the round-robin skip rules: a Suspended route, a
// Built active route whose endpoints report no failure, an inactive Idle
// route, and an Idle route whose nodes aren't both available are all
// parked until an external event (SetNodeAvailable, Activate, node-loss
// recovery, an endpoint result) wakes the scan again.
func (m *Manager) eligible(r *Route) bool {
	switch r.State {
	case StateSuspended:
		return false
	case StateBuilt:
		// A failure reported on a Built endpoint makes the route eligible
		// so stepBuilt can deteriorate it.
		return !r.Active || severity(r.Source) != endpoint.SeverityNone || severity(r.Sink) != endpoint.SeverityNone
	case StateIdle:
		if !r.Active {
			return false
		}
		return m.nodesAvailable(r)
	default:
		return true
	}
}

func (m *Manager) nodesAvailable(r *Route) bool {
	return m.nodeAvailable(r.Source) && m.nodeAvailable(r.Sink)
}

func (m *Manager) nodeAvailable(ep *endpoint.Endpoint) bool {
	if ep == nil {
		return false
	}
	n, ok := m.nodes[ep.NodeRef]
	return !ok || n.Available
}

func (m *Manager) step(r *Route) {
	switch r.State {
	case StateIdle:
		m.stepIdle(r)
	case StateConstruction:
		m.stepConstruction(r)
	case StateBuilt:
		m.stepBuilt(r)
	case StateDeteriorated:
		m.stepDeteriorated(r)
	case StateDestruction:
		m.stepDestruction(r)
	}
}

func (m *Manager) stepIdle(r *Route) {
	r.State = StateConstruction
	r.Source.Acquire()
	r.Sink.Acquire()
	m.xrm.BuildSource(r.Source)
}

// stepConstruction resolves a deadlocked endpoint left in XrmProcessing
// with an Uncritical last result before evaluating the normal transition
// table, so a race where the XRM callback arrives before the route ever
// ticks again cannot wedge the route.
func (m *Manager) stepConstruction(r *Route) {
	m.resolveDeadlock(r.Source)
	m.resolveDeadlock(r.Sink)

	if isCritical(severity(r.Source)) || isCritical(severity(r.Sink)) {
		m.toDeteriorated(r, LastResultCritical)
		return
	}

	switch {
	case r.Source.State == endpoint.StateIdle:
		m.xrm.BuildSource(r.Source)
	case r.Source.State == endpoint.StateBuilt && r.Sink.State == endpoint.StateIdle:
		r.Sink.ConnectionLabel = r.Source.ConnectionLabel
		m.xrm.BuildSink(r.Sink, r.Source.ConnectionLabel)
	case r.Source.State == endpoint.StateBuilt && r.Sink.State == endpoint.StateBuilt:
		r.State = StateBuilt
		if r.retryBackoff != nil {
			r.retryBackoff.Reset()
		}
		r.notify(EventRouteBuilt)
	}
}

func (m *Manager) resolveDeadlock(ep *endpoint.Endpoint) {
	if ep.State == endpoint.StateXrmProcessing && ep.LastResult.Severity == endpoint.SeverityUncritical {
		ep.ResetToIdle()
	}
}

func severity(ep *endpoint.Endpoint) endpoint.Severity {
	return ep.LastResult.Severity
}

func (m *Manager) stepBuilt(r *Route) {
	if isCritical(severity(r.Source)) || isCritical(severity(r.Sink)) {
		m.toDeteriorated(r, LastResultCritical)
		return
	}
	if severity(r.Source) == endpoint.SeverityUncritical || severity(r.Sink) == endpoint.SeverityUncritical {
		m.toDeteriorated(r, LastResultUncritical)
		return
	}
	if !r.Active {
		r.State = StateDestruction
		r.sourceReleased = false
		r.Sink.Release() // sinks are not fan-out shared; destroy unconditionally
		m.xrm.Destroy(r.Sink)
	}
}

func (m *Manager) toDeteriorated(r *Route, lr LastResult) {
	r.State = StateDeteriorated
	r.LastResult = lr
}

// stepDeteriorated parks an Uncritical-failure route behind an expanding
// backoff before handing it back to Idle, so a node that is flapping
// doesn't make the round-robin scan spin rebuilding it every tick
// (cenkalti/backoff.ExponentialBackOff, reset once the route reaches
// Built again).
func (m *Manager) stepDeteriorated(r *Route) {
	if r.LastResult == LastResultCritical || !m.nodesAvailable(r) {
		r.State = StateSuspended
		r.notify(EventRouteSuspended)
		return
	}
	if r.retryPending {
		return
	}
	r.retryPending = true
	if r.retryBackoff == nil {
		r.retryBackoff = backoff.NewExponentialBackOff()
	}
	d := r.retryBackoff.NextBackOff()
	if d < 0 {
		d = 0
	}
	ms := uint16(d.Milliseconds())
	m.cfg.Timers.Set(&r.retryTimer, m.onRetryFire, r, m.cfg.Now(), ms, 0)
}

func (m *Manager) onRetryFire(arg any, now timer.Tick) {
	r := arg.(*Route)
	r.retryPending = false
	r.Source.ResetToIdle()
	r.Sink.ResetToIdle()
	r.LastResult = LastResultNone
	r.State = StateIdle
	m.wake()
}

func (m *Manager) stepDestruction(r *Route) {
	if r.Sink.State != endpoint.StateIdle {
		return // waiting for the sink destroy XRM callback
	}
	if !r.sourceReleased {
		r.sourceReleased = true
		if r.Source.Release() {
			m.xrm.Destroy(r.Source)
		} else {
			m.finishDestruction(r)
		}
		return
	}
	if r.Source.State == endpoint.StateIdle {
		m.finishDestruction(r)
	}
}

func (m *Manager) finishDestruction(r *Route) {
	r.State = StateIdle
	r.sourceReleased = false
	r.LastResult = LastResultNone
	r.notify(EventRouteDestroyed)
}
