// Package message defines the wire-level telegram envelope and the
// Transceiver contract the core consumes. Telegram framing itself —
// payload bytes to and from the companion device — is out of scope; this
// package only describes the typed request/response envelope carried
// over it.
package message

// ID identifies a remote method and the kind of invocation/response.
type ID struct {
	FBlockID   FBlockID
	InstanceID uint8
	FunctionID FunctionID
	OpType     OpType
}

// Key returns the dispatch key for this ID.
func (i ID) Key() Key {
	return Key{Function: i.FunctionID, Op: i.OpType}
}

// TxStatusFunc is invoked exactly once per Send, reporting the outcome of
// the transmit attempt.
type TxStatusFunc func(msg *Telegram, status TxStatus)

// Telegram is a request or response frame allocated from a caller-provided
// pool. A buffer is owned exclusively
// by whoever currently holds the pointer: allocator → command builder →
// transceiver → Tx-status callback → pool.
type Telegram struct {
	DestinationAddr uint16
	SourceAddr      uint16
	ID              ID
	Payload         []byte

	// InfoPtr conventionally holds the SingleSubject that will receive the
	// decoded reply. Left untyped (any) so the message package carries no
	// dependency on the observer package; command-layer code type-asserts
	// it back to *observer.SingleSubject.
	InfoPtr any

	txStatusCB TxStatusFunc
}

// SetTxStatusCallback installs the callback Send will invoke with the
// outcome of transmission.
func (t *Telegram) SetTxStatusCallback(cb TxStatusFunc) {
	t.txStatusCB = cb
}

// TxStatusCallback returns the installed callback, or nil.
func (t *Telegram) TxStatusCallback() TxStatusFunc {
	return t.txStatusCB
}

// TxStatus is the outcome of a transmit attempt, reported exactly once per
// Send via the message's TxStatusFunc.
type TxStatus int

const (
	TxStatusOK TxStatus = iota
	TxStatusUnknown
	TxStatusConfigNoRcvr
	TxStatusFatalOA
	TxStatusFatalWt
	TxStatusTimeout
	TxStatusBf
	TxStatusCrc
	TxStatusNaTrans
	TxStatusAck
	TxStatusId
)

// String returns a human-readable name for the Tx status.
func (s TxStatus) String() string {
	switch s {
	case TxStatusOK:
		return "OK"
	case TxStatusUnknown:
		return "Unknown"
	case TxStatusConfigNoRcvr:
		return "ConfigNoRcvr"
	case TxStatusFatalOA:
		return "FatalOA"
	case TxStatusFatalWt:
		return "FatalWt"
	case TxStatusTimeout:
		return "Timeout"
	case TxStatusBf:
		return "Bf"
	case TxStatusCrc:
		return "Crc"
	case TxStatusNaTrans:
		return "NaTrans"
	case TxStatusAck:
		return "Ack"
	case TxStatusId:
		return "Id"
	default:
		return "Unknown"
	}
}

// IsTransient reports whether the Tx status is one of the transient
// failures the route manager classifies as Uncritical.
func (s TxStatus) IsTransient() bool {
	switch s {
	case TxStatusUnknown, TxStatusFatalWt, TxStatusTimeout, TxStatusBf, TxStatusCrc, TxStatusNaTrans, TxStatusAck, TxStatusId:
		return true
	default:
		return false
	}
}

// IsFatal reports whether the Tx status is one of the failures the route
// manager classifies as Critical regardless of retry count.
func (s TxStatus) IsFatal() bool {
	return s == TxStatusConfigNoRcvr || s == TxStatusFatalOA
}

// Transceiver is the external collaborator consumed by the core. The core
// never allocates network buffers itself; it asks the transceiver.
type Transceiver interface {
	// AllocTx returns a buffer with uninitialised payload of at least
	// payloadLen bytes, or (nil, false) on exhaustion.
	AllocTx(payloadLen int) (*Telegram, bool)

	// Send transmits msg. The transceiver must eventually invoke msg's
	// installed TxStatusFunc exactly once, with TxStatusOK or one of the
	// error variants.
	Send(msg *Telegram) error

	// Release returns msg to the pool.
	Release(msg *Telegram)
}

// Receiver is implemented by whatever decodes inbound bytes into
// Telegrams and delivers them to the core via OnReceive.
type Receiver interface {
	OnReceive(msg *Telegram)
}
