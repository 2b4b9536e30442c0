// Package ucs is the public application-facing facade: it wires the
// L1-L6 substrate, the INIC command layer, the endpoint/XRM collaborator
// surface, and the route manager into the single object a host
// application drives with a tick clock and a service loop.
package ucs

import (
	"github.com/pion/logging"

	"github.com/unicens-project/ucs-go/internal/apilock"
	"github.com/unicens-project/ucs-go/internal/eventhandler"
	"github.com/unicens-project/ucs-go/internal/observer"
	"github.com/unicens-project/ucs-go/internal/scheduler"
	"github.com/unicens-project/ucs-go/internal/timer"
	"github.com/unicens-project/ucs-go/pkg/endpoint"
	"github.com/unicens-project/ucs-go/pkg/inic"
	"github.com/unicens-project/ucs-go/pkg/message"
	"github.com/unicens-project/ucs-go/pkg/route"
)

// Return mirrors the small status enum the application-facing operations
// return.
type Return = route.Return

const (
	Success        = route.Success
	ErrAlreadySet  = route.ErrAlreadySet
	ErrParam       = route.ErrParam
	ErrNotAvailable = route.ErrNotAvailable
	ErrNotInitialized = route.ErrNotInitialized
)

// InitData carries the host's tick clock and optional wake hint, passed
// to Init as `InitData{ TickClock, WakeHint, UserPtr }`.
type InitData struct {
	// TickClock reads the host's monotonic 16-bit millisecond clock.
	TickClock func() timer.Tick

	// WakeHint, if non-nil, is notified with the number of milliseconds
	// until the runtime next needs service() called, letting the host
	// arm a single sleep/wake timer instead of polling.
	WakeHint timer.ApplicationTimerObserver

	// UserPtr is opaque application context. Init ignores it; the library
	// never stores or dereferences it.
	UserPtr any
}

// Config wires the external collaborators the facade composes: a
// Transceiver for the INIC link and a Builder for the XRM. Everything
// else (scheduler, timers, event bus, lock manager, caches) is owned
// internally.
type Config struct {
	Transceiver message.Transceiver
	Builder     endpoint.Builder

	DestinationAddr uint16
	SourceAddr      uint16

	GCPeriodMs   uint16
	RouteTickMs  uint16

	LoggerFactory logging.LoggerFactory
}

// Runtime is the top-level facade. One per EHC/INIC link.
type Runtime struct {
	cfg Config
	log logging.LeveledLogger

	sched *scheduler.Scheduler
	timers *timer.List
	events *eventhandler.Handler
	locks *apilock.Manager

	inic  *inic.Instance
	route *route.Manager

	initResult observer.SingleSubject
	now        func() timer.Tick
}

// New builds a Runtime from cfg without starting it. Call Init to deliver
// the tick clock and begin service.
func New(cfg Config) (*Runtime, error) {
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	r := &Runtime{cfg: cfg}
	r.log = cfg.LoggerFactory.NewLogger("ucs")
	return r, nil
}

// Init wires the runtime around data.TickClock and returns Success
// immediately; the NetworkStartup outcome (an inic.Result) is delivered
// asynchronously via AddInitResultObserver once the INIC replies.
func (r *Runtime) Init(data InitData) Return {
	if data.TickClock == nil {
		return ErrParam
	}
	r.now = data.TickClock

	r.sched = scheduler.New()
	r.timers = timer.New(r.now())
	if data.WakeHint != nil {
		r.timers.SetApplicationTimerObserver(data.WakeHint)
	}
	r.events = eventhandler.New()
	r.locks = apilock.New(r.timers, r.now, gcPeriod(r.cfg.GCPeriodMs))

	r.inic = inic.New(inic.Config{
		Transceiver:     r.cfg.Transceiver,
		Scheduler:       r.sched,
		Timers:          r.timers,
		EventHandler:    r.events,
		Locks:           r.locks,
		Now:             r.now,
		DestinationAddr: r.cfg.DestinationAddr,
		SourceAddr:      r.cfg.SourceAddr,
		LoggerFactory:   r.cfg.LoggerFactory,
	})

	rm, err := route.New(route.Config{
		Scheduler:     r.sched,
		Timers:        r.timers,
		Now:           r.now,
		EventHandler:  r.events,
		NetStatus:     r.inic.NetworkStatusCache(),
		Builder:       r.cfg.Builder,
		LoggerFactory: r.cfg.LoggerFactory,
		TickPeriodMs:  r.cfg.RouteTickMs,
	})
	if err != nil {
		return ErrParam
	}
	r.route = rm

	r.inic.NetworkStartup(observer.ObserverFunc(r.onStartupResult))
	return Success
}

func gcPeriod(ms uint16) uint16 {
	if ms == 0 {
		return apilock.DefaultGCPeriodMs
	}
	return ms
}

func (r *Runtime) onStartupResult(data any) {
	r.initResult.Notify(data)
}

// AddInitResultObserver subscribes obs to the asynchronous init outcome.
func (r *Runtime) AddInitResultObserver(obs observer.Observer) error {
	return r.initResult.Add(obs)
}

// Service runs one scheduler pass.
func (r *Runtime) Service() {
	r.timers.Service(r.now())
	r.sched.ServiceTick()
}

// OnReceive decodes and dispatches one inbound telegram. Host transceiver
// integrations call this from their Drain/poll point, never directly from
// an I/O goroutine.
func (r *Runtime) OnReceive(msg *message.Telegram) {
	r.inic.OnReceive(msg)
}

// Instance exposes the INIC command layer for issuing remote commands.
func (r *Runtime) Instance() *inic.Instance {
	return r.inic
}

// RouteStartProcess installs the route table.
func (r *Runtime) RouteStartProcess(routes []*route.Route) Return {
	return r.route.StartProcess(routes)
}

// RouteActivate activates a route.
func (r *Runtime) RouteActivate(rt *route.Route) Return {
	return r.route.Activate(rt)
}

// RouteDeactivate deactivates a route.
func (r *Runtime) RouteDeactivate(rt *route.Route) Return {
	return r.route.Deactivate(rt)
}

// SetNodeAvailable flips a node's availability flag.
func (r *Runtime) SetNodeAvailable(nodeID any, available bool) Return {
	if !r.inic.NetworkStatusCache().IsAvailable() && available {
		return ErrNotAvailable
	}
	return r.route.SetNodeAvailable(nodeID, available)
}

// RegisterNode introduces a node the route manager should track
// eligibility for. Call once per node before referencing it from an
// Endpoint.NodeRef.
func (r *Runtime) RegisterNode(id any) *route.Node {
	return r.route.RegisterNode(id)
}

// GetAttachedRoutes returns every currently-Built route.
func (r *Runtime) GetAttachedRoutes() []*route.Route {
	return r.route.GetAttachedRoutes()
}

// GetConnectionLabel returns rt's connection label (0 unless Built).
func (r *Runtime) GetConnectionLabel(rt *route.Route) uint16 {
	return r.route.GetConnectionLabel(rt)
}
