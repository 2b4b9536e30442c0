// Package eventhandler implements the process-wide internal-event bus and
// the single public error sink.
package eventhandler

import "github.com/unicens-project/ucs-go/internal/observer"

// Code is a bit-encoded internal event. Multiple bits are never combined
// in a single ReportEvent call — each call reports exactly one condition —
// but observer masks are a bitwise-OR of the codes they care about.
type Code uint32

const (
	SyncLost Code = 1 << iota
	BistFailed
	UnsyncComplete
	UnsyncFailed
	InitSucceeded
	InitFailed
)

// TerminationSet is the set of events whose receipt means the system has
// left the operational state. Every stateful component observes this set
// and tears down its pending state.
const TerminationSet = UnsyncComplete | UnsyncFailed | BistFailed | InitFailed

// PublicErrorCode identifies the category of error reported to the
// application-facing error sink.
type PublicErrorCode int

const (
	PublicErrorNone PublicErrorCode = iota
	PublicErrorInic
	PublicErrorCommunication
)

// PublicError is the payload delivered to the public error subject.
type PublicError struct {
	Code PublicErrorCode
}

// Handler owns the internal-event Subject and the public-error
// SingleSubject. There is exactly one Handler per runtime instance; it is
// not a process-wide singleton so that multiple independent instances in
// one address space stay isolated.
type Handler struct {
	internal    observer.Subject
	publicError observer.SingleSubject
}

// New creates an empty event handler.
func New() *Handler {
	return &Handler{}
}

// AddInternalObserver subscribes a masked observer to internal events.
// Callers typically wrap their Observer in a filtering adapter keyed on a
// bitmask; Handler itself notifies every subscriber for every event and
// leaves masking to the caller via MaskedObserver-style wrapping, where a
// subscriber only reacts when its mask intersects the reported code.
func (h *Handler) AddInternalObserver(obs observer.Observer) error {
	return h.internal.Add(obs)
}

// RemoveInternalObserver unsubscribes obs from internal events.
func (h *Handler) RemoveInternalObserver(obs observer.Observer) error {
	return h.internal.Remove(obs)
}

// SetPublicErrorObserver installs the application's error-report observer.
func (h *Handler) SetPublicErrorObserver(obs observer.Observer) error {
	return h.publicError.Add(obs)
}

// publicFailureCode maps an internal event to its public error category.
// Only BistFailed and the Unsync* events are user-facing; SyncLost and
// InitSucceeded/InitFailed are purely internal signals.
func publicFailureCode(code Code) (PublicErrorCode, bool) {
	switch code {
	case BistFailed:
		return PublicErrorInic, true
	case UnsyncComplete, UnsyncFailed:
		return PublicErrorCommunication, true
	default:
		return PublicErrorNone, false
	}
}

// ReportEvent notifies all internal observers of code and, if code is one
// of the user-facing failure codes, also notifies the public error
// subject.
func (h *Handler) ReportEvent(code Code) {
	h.internal.Notify(code)
	if pub, ok := publicFailureCode(code); ok {
		h.publicError.Notify(PublicError{Code: pub})
	}
}

// IsTermination reports whether code is a member of TerminationSet.
func IsTermination(code Code) bool {
	return TerminationSet&code != 0
}
