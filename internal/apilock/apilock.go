// Package apilock implements the API-locking manager: a per-client bitmask
// lock with a centralized, garbage-collected timeout.
//
// Two bitmasks per client: MethodMask says "locked right now"; TimeoutMask
// says "was locked at the start of the previous GC pass and has not been
// released since". Each GC tick fires the client's timeout observer for
// every bit still set in TimeoutMask, clears that bit from both masks,
// then copies MethodMask into TimeoutMask to arm the next round. The net
// effect: any lock outstanding across two consecutive GC intervals is
// declared timed out — this is the system-wide watchdog for protocol
// responses.
package apilock

import (
	"github.com/unicens-project/ucs-go/internal/dlist"
	"github.com/unicens-project/ucs-go/internal/timer"
)

// DefaultGCPeriodMs is the default garbage-collector period: roughly 2.6s.
// It is a configurable constant, not a hard requirement.
const DefaultGCPeriodMs uint16 = 2600

// TimeoutEvent is delivered to a client's observer for each bit that the
// GC declares timed out.
type TimeoutEvent struct {
	Bit uint32
}

// TerminateEvent is delivered to every registered client's observer when
// Teardown is called: Bits is the set of method bits that were locked at
// the moment of termination.
type TerminateEvent struct {
	Bits uint32
}

// Observer receives TimeoutEvent and TerminateEvent notifications.
type Observer interface {
	Notify(data any)
}

// Client is an opaque handle returned by Register; pass it to Lock and
// Release.
type Client struct {
	node        dlist.Node
	methodMask  uint32
	timeoutMask uint32
	observer    Observer
}

// Manager is the API-locking manager. One Manager per runtime instance.
type Manager struct {
	clients  dlist.List
	gcTimer  timer.Timer
	timers   *timer.List
	now      func() timer.Tick
	gcPeriod uint16
	armed    bool
}

// New creates a Manager driven by the given timer list. gcPeriodMs of 0
// uses DefaultGCPeriodMs.
func New(timers *timer.List, now func() timer.Tick, gcPeriodMs uint16) *Manager {
	if gcPeriodMs == 0 {
		gcPeriodMs = DefaultGCPeriodMs
	}
	return &Manager{timers: timers, now: now, gcPeriod: gcPeriodMs}
}

// Register creates a new client bound to obs, which receives TimeoutEvent
// and TerminateEvent notifications for bits owned by this client.
func (m *Manager) Register(obs Observer) *Client {
	c := &Client{observer: obs}
	c.node.Owner = c
	m.clients.InsertTail(&c.node)
	return c
}

// Unregister removes c. Any bits it held are simply dropped; no events are
// delivered.
func (m *Manager) Unregister(c *Client) {
	m.clients.Remove(&c.node)
	if m.clients.Len() == 0 {
		m.disarm()
	}
}

// Lock attempts to acquire bit for c. Succeeds iff the bit is not already
// locked; arms the GC timer if this is the first outstanding lock across
// all clients.
func (m *Manager) Lock(c *Client, bit uint32) bool {
	if c.methodMask&bit != 0 {
		return false
	}
	c.methodMask |= bit
	c.timeoutMask &^= bit
	m.arm()
	return true
}

// Release clears bit for c in both masks. Disarms the GC timer if no
// client has any bit locked afterward.
func (m *Manager) Release(c *Client, bit uint32) {
	c.methodMask &^= bit
	c.timeoutMask &^= bit
	if !m.anyLocked() {
		m.disarm()
	}
}

// IsLocked reports whether bit is currently locked for c.
func (m *Manager) IsLocked(c *Client, bit uint32) bool {
	return c.methodMask&bit != 0
}

func (m *Manager) anyLocked() bool {
	found := false
	m.clients.Foreach(func(n *dlist.Node) bool {
		if n.Owner.(*Client).methodMask != 0 {
			found = true
			return true
		}
		return false
	})
	return found
}

func (m *Manager) arm() {
	if m.armed {
		return
	}
	m.armed = true
	m.timers.Set(&m.gcTimer, m.onGC, nil, m.now(), m.gcPeriod, m.gcPeriod)
}

func (m *Manager) disarm() {
	if !m.armed {
		return
	}
	m.armed = false
	m.timers.Clear(&m.gcTimer)
}

func (m *Manager) onGC(arg any, now timer.Tick) {
	anyLeft := false
	m.clients.Foreach(func(n *dlist.Node) bool {
		c := n.Owner.(*Client)
		expired := c.timeoutMask
		for bit := uint32(1); expired != 0; bit <<= 1 {
			if bit == 0 {
				break
			}
			if expired&bit != 0 {
				expired &^= bit
				c.methodMask &^= bit
				c.timeoutMask &^= bit
				if c.observer != nil {
					c.observer.Notify(TimeoutEvent{Bit: bit})
				}
			}
		}
		c.timeoutMask = c.methodMask
		if c.methodMask != 0 {
			anyLeft = true
		}
		return false
	})
	if !anyLeft {
		m.disarm()
	}
}

// Teardown resets every registered client: both masks cleared, and each
// client's observer is notified with a TerminateEvent naming the bits that
// were locked at the moment of termination. The GC timer is disarmed.
func (m *Manager) Teardown() {
	m.clients.Foreach(func(n *dlist.Node) bool {
		c := n.Owner.(*Client)
		locked := c.methodMask
		c.methodMask = 0
		c.timeoutMask = 0
		if c.observer != nil && locked != 0 {
			c.observer.Notify(TerminateEvent{Bits: locked})
		}
		return false
	})
	m.disarm()
}
