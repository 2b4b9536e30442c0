// Package timer implements a delta-list timer wheel: a host-driven,
// tick-based timer service with no OS threads and no blocking I/O. The
// host supplies a monotonic 16-bit millisecond
// clock by calling Service on every scheduler pass; all arithmetic on the
// tick domain is unsigned modular subtraction so a 0xFFFF → 0x0000
// wraparound never misfires or drops a timer.
package timer

import "github.com/unicens-project/ucs-go/internal/dlist"

// Tick is the host's monotonic millisecond clock. It wraps at 16 bits.
type Tick uint16

// Sub returns a-b as an unsigned modular difference over the 16-bit tick
// domain, i.e. the number of milliseconds that elapsed going from b to a.
func Sub(a, b Tick) uint16 {
	return uint16(a - b)
}

// Handler is invoked when a timer fires. now is the tick at which Service
// observed the timer's elapse.
type Handler func(arg any, now Tick)

// ApplicationTimerObserver is notified with the remaining time (in ms)
// until the next timer fires, after a Service pass leaves a non-empty
// list. The host uses this to arm its own wake-up timer for long sleeps;
// if none is registered, List simply expects the host to call Service
// again on its own schedule (e.g. every scheduler tick).
type ApplicationTimerObserver interface {
	SetApplicationTimer(remainingMs uint16)
}

// Timer is an intrusive node in a timer List. Zero value is valid and
// unused; embedding it costs no allocation.
type Timer struct {
	node    dlist.Node
	handler Handler
	arg     any
	period  uint16 // 0 = one-shot
	delta   uint16 // ms since the preceding timer's expiry (or since last tick for the head)
	inUse   bool
	changed bool
}

// InUse reports whether the timer is currently armed.
func (t *Timer) InUse() bool {
	return t.inUse
}

// List is an ordered delta list of armed timers. The head's delta is
// measured from lastTick; every other entry's delta is measured from its
// predecessor's expiry, so the sum of deltas up to and including any
// timer equals that timer's remaining absolute elapse.
type List struct {
	list       dlist.List
	lastTick   Tick
	appTimerObs ApplicationTimerObserver
}

// New creates an empty timer list anchored at the given initial tick.
func New(initial Tick) *List {
	return &List{lastTick: initial}
}

// SetApplicationTimerObserver installs the optional long-sleep hook.
func (l *List) SetApplicationTimerObserver(obs ApplicationTimerObserver) {
	l.appTimerObs = obs
}

// Set arms t to fire after elapse ms from the current tick, optionally
// repeating every period ms. If t is already armed it is cleared first.
func (l *List) Set(t *Timer, handler Handler, arg any, now Tick, elapseMs uint16, periodMs uint16) {
	if t.inUse {
		l.Clear(t)
	}
	t.handler = handler
	t.arg = arg
	t.period = periodMs
	t.inUse = true
	t.changed = true
	t.node.Owner = t

	newDelta := elapseMs + Sub(now, l.lastTick)
	l.insertByDelta(t, newDelta)
}

func (l *List) insertByDelta(t *Timer, newDelta uint16) {
	for n := l.list.Head(); n != nil; n = dlist.Next(n) {
		cur := n.Owner.(*Timer)
		if cur.delta <= newDelta {
			newDelta -= cur.delta
			continue
		}
		cur.delta -= newDelta
		t.delta = newDelta
		l.list.InsertBefore(n, &t.node)
		return
	}
	t.delta = newDelta
	l.list.InsertTail(&t.node)
}

// Clear disarms t. No-op if it is not currently armed.
func (l *List) Clear(t *Timer) {
	if !t.inUse {
		return
	}
	if next := dlist.Next(&t.node); next != nil {
		next.Owner.(*Timer).delta += t.delta
	}
	l.list.Remove(&t.node)
	t.inUse = false
	// Marks the timer as changed so a Service pass running t's own handler
	// does not re-insert it as periodic.
	t.changed = true
}

// Service advances the list to now, firing every timer whose cumulative
// elapse has passed. It must be called with a monotonically-advancing
// (modulo 16-bit wraparound) tick on every scheduler pass.
func (l *List) Service(now Tick) {
	diff := Sub(now, l.lastTick)
	l.lastTick = now

	for {
		head := l.list.Head()
		if head == nil {
			break
		}
		ht := head.Owner.(*Timer)
		if diff < ht.delta {
			ht.delta -= diff
			diff = 0
			break
		}
		diff -= ht.delta
		ht.delta = 0
		ht.changed = false

		handler, arg, period := ht.handler, ht.arg, ht.period
		l.list.Remove(&ht.node)
		if handler != nil {
			handler(arg, now)
		}
		if !ht.changed {
			if period != 0 {
				// Handler neither re-armed nor cleared it: re-insert as periodic.
				ht.changed = true
				l.insertByDelta(ht, period)
			} else {
				ht.inUse = false
			}
		}
		// If the handler re-armed (ht.changed true via Set) or cleared the
		// timer, it has already been placed correctly (or removed); the
		// loop simply continues from the new head.
	}

	if head := l.list.Head(); head != nil && l.appTimerObs != nil {
		l.appTimerObs.SetApplicationTimer(head.Owner.(*Timer).delta)
	}
}

// Empty reports whether any timer is currently armed.
func (l *List) Empty() bool {
	return l.list.Len() == 0
}

// NextDeltaMs returns the remaining ms until the head timer fires, and
// false if the list is empty.
func (l *List) NextDeltaMs() (uint16, bool) {
	head := l.list.Head()
	if head == nil {
		return 0, false
	}
	return head.Owner.(*Timer).delta, true
}
