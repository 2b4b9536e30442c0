// Package dispatch implements the pending-operation dispatcher: a
// (FunctionId, OpType) → handler table. The TxStatus callback bridging
// that every INIC command shares lives in pkg/inic, not here.
package dispatch

import (
	"errors"

	"github.com/unicens-project/ucs-go/pkg/message"
)

// ErrNoHandler is returned by Dispatch when no handler is registered for
// the incoming telegram's (FunctionID, OpType) key.
var ErrNoHandler = errors.New("dispatch: no handler registered")

// Handler decodes and processes one inbound telegram.
type Handler func(msg *message.Telegram)

// Table is a (FunctionID, OpType) → Handler lookup table. It is built once
// at startup by the INIC command layer and never mutated concurrently
// with Dispatch — the cooperative core is single-threaded throughout.
type Table struct {
	entries map[message.Key]Handler
}

// NewTable creates an empty dispatch table.
func NewTable() *Table {
	return &Table{entries: make(map[message.Key]Handler)}
}

// Register installs handler for key. Registering twice for the same key
// overwrites the previous handler — the command set is closed and known
// at compile time, so this only happens during setup.
func (t *Table) Register(key message.Key, handler Handler) {
	t.entries[key] = handler
}

// Dispatch looks up the handler for msg's (FunctionID, OpType) and invokes
// it. Returns ErrNoHandler if none is registered.
func (t *Table) Dispatch(msg *message.Telegram) error {
	h, ok := t.entries[msg.ID.Key()]
	if !ok {
		return ErrNoHandler
	}
	h(msg)
	return nil
}

// OnReceive adapts Table to message.Receiver so it can be installed
// directly as the transceiver's receive hook.
func (t *Table) OnReceive(msg *message.Telegram) {
	_ = t.Dispatch(msg)
}
