// Package transceiver provides message.Transceiver implementations: an
// in-process Fake for tests, and a UDP-backed transceiver for the example
// host application.
package transceiver

import (
	"sync"

	"github.com/unicens-project/ucs-go/pkg/message"
)

// Fake is a synchronous, in-process message.Transceiver. Send loops the
// telegram directly back to a peer Receiver (or drops it, if none is set)
// and invokes the Tx-status callback before returning, so tests never need
// a goroutine or a real clock to observe a result.
type Fake struct {
	mu         sync.Mutex
	maxPayload int
	peer       message.Receiver
	nextStatus message.TxStatus
	sent       []*message.Telegram
}

// NewFake creates a Fake transceiver whose AllocTx grants buffers up to
// maxPayload bytes.
func NewFake(maxPayload int) *Fake {
	return &Fake{maxPayload: maxPayload, nextStatus: message.TxStatusOK}
}

// SetPeer installs the Receiver that loopback-delivered telegrams are
// handed to. Typically the peer is a second Instance in a test pair.
func (f *Fake) SetPeer(r message.Receiver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peer = r
}

// SetNextStatus overrides the TxStatus the next Send reports, then resets
// to TxStatusOK. Use it to exercise retry/error-classification paths.
func (f *Fake) SetNextStatus(s message.TxStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextStatus = s
}

// Sent returns every telegram ever passed to Send, for test assertions.
func (f *Fake) Sent() []*message.Telegram {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*message.Telegram, len(f.sent))
	copy(out, f.sent)
	return out
}

// AllocTx implements message.Transceiver.
func (f *Fake) AllocTx(payloadLen int) (*message.Telegram, bool) {
	if payloadLen > f.maxPayload {
		return nil, false
	}
	return &message.Telegram{Payload: make([]byte, payloadLen)}, true
}

// Send implements message.Transceiver.
func (f *Fake) Send(msg *message.Telegram) error {
	f.mu.Lock()
	status := f.nextStatus
	f.nextStatus = message.TxStatusOK
	peer := f.peer
	f.sent = append(f.sent, msg)
	f.mu.Unlock()

	if cb := msg.TxStatusCallback(); cb != nil {
		cb(msg, status)
	}
	if status == message.TxStatusOK && peer != nil {
		peer.OnReceive(msg)
	}
	return nil
}

// Release implements message.Transceiver. Fake does not pool buffers.
func (f *Fake) Release(msg *message.Telegram) {}
