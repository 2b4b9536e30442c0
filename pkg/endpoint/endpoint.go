// Package endpoint implements the Endpoint state machine: a source or
// sink of a streaming flow on a specific node, whose concrete
// build/destroy is delegated to an Extended Resource Manager (XRM)
// collaborator. XRM itself is out of scope: this package only defines
// the interface boundary and the state machine that drives it, treating
// the XRM as a black box.
package endpoint

import "github.com/unicens-project/ucs-go/internal/observer"

// Type distinguishes a streaming source from a streaming sink.
type Type int

const (
	TypeSource Type = iota
	TypeSink
)

// State is the Endpoint's build lifecycle.
type State int

const (
	StateIdle State = iota
	StateXrmProcessing
	StateBuilt
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateXrmProcessing:
		return "XrmProcessing"
	case StateBuilt:
		return "Built"
	default:
		return "Unknown"
	}
}

// ErrorAxis classifies which of the three orthogonal error axes an XRM
// result reported: Transmission (Tx-status level), Target (INIC-reported),
// or Internal (library-detected). Exactly one axis is populated per
// Result.
type ErrorAxis int

const (
	AxisNone ErrorAxis = iota
	AxisTransmission
	AxisTarget
	AxisInternal
)

// Severity is the retry classification the route manager derives from a
// Result.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityUncritical
	SeverityCritical
	SeverityConfiguration
)

// Result is the XRM's outcome for a build or destroy job, delivered
// asynchronously to the Endpoint's Subject. The concrete codes making up
// Transmission/Target/Internal are owned by the caller (normally
// pkg/route via pkg/inic's TxStatus/ResultCode taxonomies) — Endpoint
// itself only carries the raw axis/code plus Severity. A Builder that
// knows the axis (a real XRM integration) should leave Severity zero and
// populate Axis/Code; pkg/route derives Severity from those before the
// route state machine ever looks at it. A Builder that only knows
// Critical/Uncritical/Success (every fake in this repo's tests) can set
// Severity directly and leave Axis at AxisNone.
type Result struct {
	Success   bool
	Op        Op
	Axis      ErrorAxis
	Code      int
	Severity  Severity
}

// Op names which XRM operation a Result reports the outcome of.
type Op int

const (
	OpBuild Op = iota
	OpDestroy
)

// magicValue is an in-band sentinel letting the library detect caller-side
// re-use of uninitialised endpoint memory.
const magicValue uint32 = 0x45504e54 // "EPNT"

// Endpoint is a source or sink of a streaming flow on a specific node.
// The caller owns the Endpoint's storage (no heap allocation inside the
// library); Init must be called once before first use.
type Endpoint struct {
	Type            Type
	NodeRef         any // caller-defined node identity, opaque here
	SpecRef         any // caller-defined stream spec, opaque here
	State           State
	ConnectionLabel uint16
	ReferenceCount  uint8
	LastResult      Result

	Subject observer.Subject

	magic uint32
}

// Init prepares ep for first use. Calling any other method on an
// Endpoint that was never Init'd is a caller bug; Valid() lets callers
// detect it defensively.
func (ep *Endpoint) Init(t Type, nodeRef, specRef any) {
	ep.Type = t
	ep.NodeRef = nodeRef
	ep.SpecRef = specRef
	ep.State = StateIdle
	ep.ConnectionLabel = 0
	ep.ReferenceCount = 0
	ep.magic = magicValue
}

// Valid reports whether ep was initialised via Init.
func (ep *Endpoint) Valid() bool {
	return ep.magic == magicValue
}

// Acquire increments the reference count. Called by a route when it
// starts owning this endpoint in a non-Idle state.
func (ep *Endpoint) Acquire() {
	ep.ReferenceCount++
}

// Release decrements the reference count. Returns true if the count
// dropped to zero, meaning the caller that dropped the last reference is
// the one that must issue destruction.
func (ep *Endpoint) Release() bool {
	if ep.ReferenceCount == 0 {
		return true
	}
	ep.ReferenceCount--
	return ep.ReferenceCount == 0
}

// ResetToIdle force-resets the endpoint's in-memory state without issuing
// an XRM destroy. Used by the deadlock resolver and node-loss handling —
// a deliberate last-resort mechanism.
func (ep *Endpoint) ResetToIdle() {
	ep.State = StateIdle
	ep.ConnectionLabel = 0
	ep.LastResult = Result{}
}
