package transceiver

import "errors"

var (
	// ErrClosed is returned by Send once Stop has been called.
	ErrClosed = errors.New("transceiver: closed")

	// ErrMessageTooLarge is returned by Send when the encoded telegram
	// exceeds MaxDatagramSize. AllocTx reports an oversized request by
	// returning false instead.
	ErrMessageTooLarge = errors.New("transceiver: message too large")

	// ErrNoPeerAddr is returned by NewUDP when cfg.PeerAddr is nil.
	ErrNoPeerAddr = errors.New("transceiver: peer address required")
)
