package dispatch

import (
	"testing"

	"github.com/unicens-project/ucs-go/pkg/message"
)

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	tbl := NewTable()
	key := message.Key{Function: message.FuncNetworkStartup, Op: message.OpTypeStartResult}
	var got *message.Telegram
	tbl.Register(key, func(msg *message.Telegram) { got = msg })

	msg := &message.Telegram{ID: message.ID{FunctionID: key.Function, OpType: key.Op}}
	if err := tbl.Dispatch(msg); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got != msg {
		t.Error("registered handler was not invoked with the telegram")
	}
}

func TestDispatchUnknownKeyReturnsErrNoHandler(t *testing.T) {
	tbl := NewTable()
	msg := &message.Telegram{ID: message.ID{FunctionID: message.FuncDeviceStatus, OpType: message.OpTypeGet}}
	if err := tbl.Dispatch(msg); err != ErrNoHandler {
		t.Errorf("Dispatch() error = %v, want ErrNoHandler", err)
	}
}

func TestRegisterTwiceOverwrites(t *testing.T) {
	tbl := NewTable()
	key := message.Key{Function: message.FuncDeviceStatus, Op: message.OpTypeGet}
	var calls []string
	tbl.Register(key, func(msg *message.Telegram) { calls = append(calls, "first") })
	tbl.Register(key, func(msg *message.Telegram) { calls = append(calls, "second") })

	tbl.Dispatch(&message.Telegram{ID: message.ID{FunctionID: key.Function, OpType: key.Op}})
	if len(calls) != 1 || calls[0] != "second" {
		t.Errorf("calls = %v, want [second]", calls)
	}
}

func TestOnReceiveSwallowsErrNoHandler(t *testing.T) {
	tbl := NewTable()
	msg := &message.Telegram{ID: message.ID{FunctionID: message.FuncDeviceStatus, OpType: message.OpTypeGet}}

	// Must not panic even though no handler is registered.
	tbl.OnReceive(msg)
}
