package transceiver

import (
	"net"
	"testing"
	"time"

	"github.com/unicens-project/ucs-go/pkg/message"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := &message.Telegram{
		DestinationAddr: 0x1234,
		SourceAddr:      0x5678,
		ID: message.ID{
			FBlockID:   message.FBlockEXC,
			InstanceID: 2,
			FunctionID: message.FuncNetworkStartup,
			OpType:     message.OpTypeStartResult,
		},
		Payload: []byte{0xAA, 0xBB, 0xCC},
	}

	buf := encode(msg)
	got, ok := decode(buf)
	if !ok {
		t.Fatal("decode() ok = false")
	}
	if got.DestinationAddr != msg.DestinationAddr || got.SourceAddr != msg.SourceAddr {
		t.Errorf("addrs = (%#x, %#x), want (%#x, %#x)", got.DestinationAddr, got.SourceAddr, msg.DestinationAddr, msg.SourceAddr)
	}
	if got.ID != msg.ID {
		t.Errorf("ID = %+v, want %+v", got.ID, msg.ID)
	}
	if string(got.Payload) != string(msg.Payload) {
		t.Errorf("Payload = %v, want %v", got.Payload, msg.Payload)
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	if _, ok := decode(make([]byte, headerLen-1)); ok {
		t.Error("decode() ok = true for a buffer shorter than the header")
	}
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	msg := &message.Telegram{Payload: []byte{1, 2, 3, 4}}
	buf := encode(msg)
	if _, ok := decode(buf[:len(buf)-1]); ok {
		t.Error("decode() ok = true for a buffer truncated mid-payload")
	}
}

func TestFakeSendDeliversToPeerOnOK(t *testing.T) {
	f := NewFake(128)
	var got *message.Telegram
	f.SetPeer(recvFunc(func(msg *message.Telegram) { got = msg }))

	msg := &message.Telegram{Payload: []byte("hi")}
	var status message.TxStatus
	msg.SetTxStatusCallback(func(m *message.Telegram, s message.TxStatus) { status = s })

	if err := f.Send(msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if status != message.TxStatusOK {
		t.Errorf("status = %v, want TxStatusOK", status)
	}
	if got != msg {
		t.Error("peer did not receive the sent telegram")
	}
	if sent := f.Sent(); len(sent) != 1 || sent[0] != msg {
		t.Errorf("Sent() = %v, want [msg]", sent)
	}
}

func TestFakeSetNextStatusSuppressesDeliveryAndResets(t *testing.T) {
	f := NewFake(128)
	var delivered bool
	f.SetPeer(recvFunc(func(msg *message.Telegram) { delivered = true }))
	f.SetNextStatus(message.TxStatusCrc)

	msg1 := &message.Telegram{}
	var status1 message.TxStatus
	msg1.SetTxStatusCallback(func(m *message.Telegram, s message.TxStatus) { status1 = s })
	f.Send(msg1)

	if status1 != message.TxStatusCrc {
		t.Errorf("status1 = %v, want TxStatusCrc", status1)
	}
	if delivered {
		t.Error("peer received telegram despite a non-OK status")
	}

	msg2 := &message.Telegram{}
	var status2 message.TxStatus
	msg2.SetTxStatusCallback(func(m *message.Telegram, s message.TxStatus) { status2 = s })
	f.Send(msg2)
	if status2 != message.TxStatusOK {
		t.Errorf("status2 = %v, want TxStatusOK (SetNextStatus only applies once)", status2)
	}
}

func TestFakeAllocTxRejectsOversizedPayload(t *testing.T) {
	f := NewFake(16)
	if _, ok := f.AllocTx(17); ok {
		t.Error("AllocTx() ok = true for a payload exceeding maxPayload")
	}
	if _, ok := f.AllocTx(16); !ok {
		t.Error("AllocTx() ok = false for a payload at maxPayload")
	}
}

type recvFunc func(msg *message.Telegram)

func (f recvFunc) OnReceive(msg *message.Telegram) { f(msg) }

func TestUDPLoopbackRoundTrip(t *testing.T) {
	a, b, err := NewUDPLoopbackPair(nil)
	if err != nil {
		t.Fatalf("NewUDPLoopbackPair() error = %v", err)
	}
	defer a.Stop()
	defer b.Stop()

	var gotOnB *message.Telegram
	b.SetReceiver(recvFunc(func(msg *message.Telegram) { gotOnB = msg }))
	a.Start()
	b.Start()

	msg := &message.Telegram{
		ID:      message.ID{FunctionID: message.FuncDeviceStatus, OpType: message.OpTypeGet},
		Payload: []byte("ping"),
	}
	statusCh := make(chan message.TxStatus, 1)
	msg.SetTxStatusCallback(func(m *message.Telegram, s message.TxStatus) { statusCh <- s })

	if err := a.Send(msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	select {
	case s := <-statusCh:
		if s != message.TxStatusOK {
			t.Fatalf("tx status = %v, want TxStatusOK", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tx status callback")
	}

	deadline := time.Now().Add(2 * time.Second)
	for gotOnB == nil && time.Now().Before(deadline) {
		b.Drain()
		time.Sleep(5 * time.Millisecond)
	}
	if gotOnB == nil {
		t.Fatal("b never received the datagram")
	}
	if gotOnB.ID.FunctionID != message.FuncDeviceStatus || string(gotOnB.Payload) != "ping" {
		t.Errorf("received = %+v, want FuncDeviceStatus/\"ping\"", gotOnB)
	}
}

func TestUDPSendAfterStopReturnsErrClosed(t *testing.T) {
	a, b, err := NewUDPLoopbackPair(nil)
	if err != nil {
		t.Fatalf("NewUDPLoopbackPair() error = %v", err)
	}
	defer b.Stop()
	a.Stop()

	if err := a.Send(&message.Telegram{}); err != ErrClosed {
		t.Errorf("Send() after Stop = %v, want ErrClosed", err)
	}
}

func TestNewUDPRequiresPeerAddr(t *testing.T) {
	if _, err := NewUDP(UDPConfig{}); err != ErrNoPeerAddr {
		t.Errorf("NewUDP() with no PeerAddr = %v, want ErrNoPeerAddr", err)
	}
}

func TestUDPAllocTxRejectsOversizedPayload(t *testing.T) {
	u, err := NewUDP(UDPConfig{PeerAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}})
	if err != nil {
		t.Fatalf("NewUDP() error = %v", err)
	}
	defer u.Stop()

	if _, ok := u.AllocTx(MaxDatagramSize); ok {
		t.Error("AllocTx() ok = true for a payload that pushes the frame past MaxDatagramSize")
	}
}
