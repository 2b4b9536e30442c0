// Package scheduler implements a priority-ordered cooperative service
// list. There is no preemption and no OS threads: the host drives
// everything by calling ServiceTick from its own loop, typically every
// time RequestService fires or on a fixed cadence.
package scheduler

import "github.com/unicens-project/ucs-go/internal/dlist"

// Event is a bitmask of application-defined event codes a Service reacts
// to. A zero mask means the service has no pending work.
type Event uint32

// Callback is invoked once per ServiceTick for any service whose event
// mask is non-zero. It receives the pending bits; ServiceTick has already
// cleared them from the service's mask before the call.
type Callback func(events Event)

// Priority orders services ascending: lower value runs earlier within a
// tick. Ties are broken by insertion order (stable).
type Priority uint8

// LowestPriority is the priority conventionally used for best-effort
// background work, e.g. registering the timer service at priority 255.
const LowestPriority Priority = 255

// Service is a single registered callback plus its pending event mask.
type Service struct {
	node     dlist.Node
	priority Priority
	instance any
	callback Callback
	events   Event
}

// Instance returns the opaque instance pointer the service was registered
// with, for diagnostics.
func (s *Service) Instance() any { return s.instance }

// Scheduler holds the priority-sorted service list and the "another tick
// is needed" request subject.
type Scheduler struct {
	list      dlist.List
	running   bool
	requested bool
	// RequestService is invoked (at most once per idle period) when a
	// service's event mask transitions from empty to non-empty outside of
	// an in-progress tick. The host should arrange for ServiceTick to run
	// again soon after this fires — synchronously, via an I/O-loop
	// wakeup, or any other scheduling primitive the host uses.
	RequestService func()
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// AddService registers a new service at priority, inserting it before the
// first already-registered service with a larger priority value, i.e.
// after every service of equal priority (stable insertion order among
// same-priority services).
func (s *Scheduler) AddService(priority Priority, instance any, callback Callback) *Service {
	svc := &Service{priority: priority, instance: instance, callback: callback}
	svc.node.Owner = svc

	mark := s.list.Foreach(func(n *dlist.Node) bool {
		return n.Owner.(*Service).priority > priority
	})
	if mark != nil {
		s.list.InsertBefore(mark, &svc.node)
	} else {
		s.list.InsertTail(&svc.node)
	}
	return svc
}

// RemoveService unregisters svc. No-op if not registered.
func (s *Scheduler) RemoveService(svc *Service) {
	s.list.Remove(&svc.node)
}

// SetEvent ORs bits into svc's pending event mask and, unless a tick is
// currently running, requests another scheduler pass. While a tick is
// running (e.g. a callback invoked from within ServiceTick sets an event
// on another, already-visited service), only the bitmask is updated: the
// in-progress walk will reach it naturally if it hasn't yet, and if it
// already has, the next ServiceTick call will pick it up without a
// redundant RequestService callback.
func (s *Scheduler) SetEvent(svc *Service, bits Event) {
	svc.events |= bits
	if !s.running {
		s.request()
	}
}

func (s *Scheduler) request() {
	if s.requested {
		return
	}
	s.requested = true
	if s.RequestService != nil {
		s.RequestService()
	}
}

// ServiceTick runs one scheduler pass: every service whose event mask is
// non-zero is invoked, in ascending priority order, each running to
// completion before the next starts. A service's mask is cleared before
// its callback runs, so a callback that wants to keep running on the next
// tick (e.g. because more work remains) must call SetEvent again itself.
func (s *Scheduler) ServiceTick() {
	s.running = true
	s.requested = false
	for n := s.list.Head(); n != nil; n = dlist.Next(n) {
		svc := n.Owner.(*Service)
		if svc.events != 0 && svc.callback != nil {
			events := svc.events
			svc.events = 0
			svc.callback(events)
		}
	}
	s.running = false
}

// IsRunning reports whether a ServiceTick is currently in progress.
func (s *Scheduler) IsRunning() bool {
	return s.running
}
