// Package observer implements the publish/subscribe fabric the runtime uses
// to deliver asynchronous results: a 1:N Subject, a 1:1 SingleSubject, and a
// MaskedObserver decorator that filters notifications by event code.
//
// Subjects are intrusive: every Observer carries the dlist.Node used to
// chain it into its subject, so subscribing never allocates.
package observer

import (
	"errors"
	"reflect"

	"github.com/unicens-project/ucs-go/internal/dlist"
)

// Errors returned by the observer package.
var (
	// ErrAlreadyAdded is returned when an Observer is added to a Subject it
	// is already linked into.
	ErrAlreadyAdded = errors.New("observer: already added")

	// ErrUnknownObserver is returned when removing an Observer that is not
	// currently linked into the Subject.
	ErrUnknownObserver = errors.New("observer: unknown observer")
)

// Observer receives notifications from a Subject. Notify is called
// synchronously from within Subject.Notify; it must not block.
type Observer interface {
	Notify(data any)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(data any)

// Notify implements Observer.
func (f ObserverFunc) Notify(data any) { f(data) }

// sameObserver reports whether a and b are the same observer. == panics
// when both sides share a non-comparable dynamic type such as
// ObserverFunc, so func-kind observers are matched by code pointer
// instead - enough to recognize the same variable passed back to Remove,
// which is the only pattern callers rely on.
func sameObserver(a, b Observer) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	if ta.Kind() == reflect.Func {
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	return false
}

type observerNode struct {
	node  dlist.Node
	obs   Observer
	valid bool
}

// Subject is a 1:N publish/subscribe list with deferred mutation during an
// in-progress notification. Structural changes made by an observer from
// inside its own Notify callback are safe: additions are queued and
// applied after the current notification finishes, and removals only mark
// the node invalid (actual unlinking is deferred the same way). Observers
// already iterated by the in-flight notification, and the newly added
// observer, are never invoked by that same round.
type Subject struct {
	list     dlist.List
	addList  dlist.List
	notify   bool
	changed  bool
	pendingR []*observerNode
}

// Add subscribes obs to the subject. Returns ErrAlreadyAdded if obs is
// already present (including pending-add entries queued by a concurrent
// notification).
func (s *Subject) Add(obs Observer) error {
	if s.find(obs) != nil {
		return ErrAlreadyAdded
	}
	on := &observerNode{obs: obs, valid: true}
	on.node.Owner = on
	if s.notify {
		s.addList.InsertTail(&on.node)
		s.changed = true
		return nil
	}
	s.list.InsertTail(&on.node)
	return nil
}

// Remove unsubscribes obs. Returns ErrUnknownObserver if obs is not
// currently present.
func (s *Subject) Remove(obs Observer) error {
	on := s.find(obs)
	if on == nil {
		return ErrUnknownObserver
	}
	if s.notify {
		on.valid = false
		s.changed = true
		return nil
	}
	s.list.Remove(&on.node)
	return nil
}

func (s *Subject) find(obs Observer) *observerNode {
	if n := s.list.Foreach(func(n *dlist.Node) bool {
		on := n.Owner.(*observerNode)
		return on.valid && sameObserver(on.obs, obs)
	}); n != nil {
		return n.Owner.(*observerNode)
	}
	if n := s.addList.Foreach(func(n *dlist.Node) bool {
		return sameObserver(n.Owner.(*observerNode).obs, obs)
	}); n != nil {
		return n.Owner.(*observerNode)
	}
	return nil
}

// Notify delivers data to every currently-valid observer, in insertion
// order. Observers may Add or Remove from this same Subject during
// Notify; those mutations are applied once Notify returns.
func (s *Subject) Notify(data any) {
	s.notify = true
	s.changed = false
	for n := s.list.Head(); n != nil; n = dlist.Next(n) {
		on := n.Owner.(*observerNode)
		if on.valid {
			on.obs.Notify(data)
		}
	}
	s.notify = false
	if s.changed {
		s.drain()
	}
}

func (s *Subject) drain() {
	for n := s.list.Head(); n != nil; {
		next := dlist.Next(n)
		if !n.Owner.(*observerNode).valid {
			s.list.Remove(n)
		}
		n = next
	}
	for n := s.addList.Head(); n != nil; {
		next := dlist.Next(n)
		s.addList.Remove(n)
		s.list.InsertTail(n)
		n = next
	}
}

// Len returns the number of currently-subscribed observers (valid nodes
// plus pending adds), mainly for diagnostics and tests.
func (s *Subject) Len() int {
	n := 0
	s.list.Foreach(func(nd *dlist.Node) bool {
		if nd.Owner.(*observerNode).valid {
			n++
		}
		return false
	})
	return n + s.addList.Len()
}

// SwitchObservers moves every observer from src to dst, preserving order.
// Used when a component wants a fresh wave of subscribers — e.g. handing a
// cached pre-notification subject's audience over to the live subject —
// without making each subscriber re-subscribe.
func SwitchObservers(dst, src *Subject) {
	for n := src.list.Head(); n != nil; {
		next := dlist.Next(n)
		src.list.Remove(n)
		dst.list.InsertTail(n)
		n = next
	}
	for n := src.addList.Head(); n != nil; {
		next := dlist.Next(n)
		src.addList.Remove(n)
		dst.addList.InsertTail(n)
		n = next
	}
	src.changed = false
}

// SingleSubject is a 1:1 observer slot. It additionally carries UserMask, a
// caller-defined bitmask read by the API-lock/dispatch layers to know
// which lock bit a delivered result releases.
type SingleSubject struct {
	obs      Observer
	UserMask uint32
}

// Add installs obs as the sole observer. Returns ErrAlreadyAdded if an
// observer is already installed.
func (s *SingleSubject) Add(obs Observer) error {
	if s.obs != nil {
		return ErrAlreadyAdded
	}
	s.obs = obs
	return nil
}

// Remove clears the installed observer. Returns ErrUnknownObserver if obs
// does not match the currently installed observer (or none is installed).
func (s *SingleSubject) Remove(obs Observer) error {
	if s.obs == nil || !sameObserver(s.obs, obs) {
		return ErrUnknownObserver
	}
	s.obs = nil
	return nil
}

// HasObserver reports whether an observer is currently installed.
func (s *SingleSubject) HasObserver() bool {
	return s.obs != nil
}

// Notify delivers data to the installed observer, if any.
func (s *SingleSubject) Notify(data any) {
	if s.obs != nil {
		s.obs.Notify(data)
	}
}

// MaskedObserver wraps an Observer with a 32-bit interest mask.
type MaskedObserver struct {
	Obs  Observer
	Mask uint32
}

// MsubNotify invokes every masked observer in obs whose Mask intersects
// eventCode.
func MsubNotify(obs []*MaskedObserver, data any, eventCode uint32) {
	for _, m := range obs {
		if m.Mask&eventCode != 0 {
			m.Obs.Notify(data)
		}
	}
}
