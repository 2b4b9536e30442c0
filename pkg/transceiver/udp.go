package transceiver

import (
	"net"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/unicens-project/ucs-go/pkg/message"
)

// MaxDatagramSize bounds an encoded telegram.
const MaxDatagramSize = 4096

// UDPConfig configures a UDP-backed transceiver.
type UDPConfig struct {
	// Conn is an optional pre-existing PacketConn. If nil, NewUDP listens
	// on ListenAddr.
	Conn net.PacketConn

	// ListenAddr is used when Conn is nil (e.g. "127.0.0.1:0").
	ListenAddr string

	// PeerAddr is where Send writes datagrams. Required.
	PeerAddr net.Addr

	LoggerFactory logging.LoggerFactory
}

// UDP is a message.Transceiver that carries telegrams over an ordinary UDP
// socket. Host I/O here necessarily runs on its own goroutine — reading a
// socket is exactly the kind of blocking call the cooperative core must
// never perform — but inbound telegrams are not handed to the core
// directly from that goroutine. They are queued into an inbox and only
// delivered to the Receiver when the host's main loop calls Drain, so the
// single-threaded contract the rest of the runtime relies on still holds.
// This mirrors how a real EHC integration buffers bytes off a UART/SPI ISR
// before feeding them to the core on its own schedule.
type UDP struct {
	conn     net.PacketConn
	peerAddr net.Addr
	log      logging.LeveledLogger

	mu       sync.Mutex
	closed   bool
	inbox    []*message.Telegram
	receiver message.Receiver

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewUDP creates a UDP transceiver. Call Start to begin reading.
func NewUDP(cfg UDPConfig) (*UDP, error) {
	if cfg.PeerAddr == nil {
		return nil, ErrNoPeerAddr
	}
	u := &UDP{
		conn:     cfg.Conn,
		peerAddr: cfg.PeerAddr,
		closeCh:  make(chan struct{}),
	}
	if cfg.LoggerFactory != nil {
		u.log = cfg.LoggerFactory.NewLogger("transceiver-udp")
	}
	if u.conn == nil {
		addr := cfg.ListenAddr
		if addr == "" {
			addr = "127.0.0.1:0"
		}
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return nil, err
		}
		u.conn = conn
	}
	return u, nil
}

// LocalAddr returns the socket's local address.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// SetReceiver installs the Receiver Drain delivers queued telegrams to.
func (u *UDP) SetReceiver(r message.Receiver) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.receiver = r
}

// Start begins the background read loop.
func (u *UDP) Start() {
	u.wg.Add(1)
	go u.readLoop()
}

// Stop closes the socket and waits for the read loop to exit.
func (u *UDP) Stop() {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	u.closed = true
	u.mu.Unlock()

	close(u.closeCh)
	u.conn.SetReadDeadline(time.Now())
	u.conn.Close()
	u.wg.Wait()
}

// Drain delivers every telegram queued since the last call to the
// installed Receiver, on the caller's goroutine. The host calls this once
// per main-loop iteration.
func (u *UDP) Drain() int {
	u.mu.Lock()
	pending := u.inbox
	u.inbox = nil
	receiver := u.receiver
	u.mu.Unlock()

	for _, msg := range pending {
		if receiver != nil {
			receiver.OnReceive(msg)
		}
	}
	return len(pending)
}

func (u *UDP) readLoop() {
	defer u.wg.Done()
	buf := make([]byte, MaxDatagramSize)
	for {
		select {
		case <-u.closeCh:
			return
		default:
		}

		n, _, err := u.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-u.closeCh:
				return
			default:
				if u.log != nil {
					u.log.Warnf("udp read error: %v", err)
				}
				continue
			}
		}
		msg, ok := decode(buf[:n])
		if !ok {
			if u.log != nil {
				u.log.Warnf("dropped malformed datagram (%d bytes)", n)
			}
			continue
		}
		u.mu.Lock()
		u.inbox = append(u.inbox, msg)
		u.mu.Unlock()
	}
}

// AllocTx implements message.Transceiver.
func (u *UDP) AllocTx(payloadLen int) (*message.Telegram, bool) {
	if headerLen+payloadLen > MaxDatagramSize {
		return nil, false
	}
	return &message.Telegram{Payload: make([]byte, payloadLen)}, true
}

// Send implements message.Transceiver: it encodes msg and writes it to
// PeerAddr, reporting the outcome via msg's Tx-status callback.
func (u *UDP) Send(msg *message.Telegram) error {
	u.mu.Lock()
	closed := u.closed
	u.mu.Unlock()
	if closed {
		return ErrClosed
	}

	buf := encode(msg)
	if len(buf) > MaxDatagramSize {
		if cb := msg.TxStatusCallback(); cb != nil {
			cb(msg, message.TxStatusFatalOA)
		}
		return ErrMessageTooLarge
	}

	_, err := u.conn.WriteTo(buf, u.peerAddr)
	status := message.TxStatusOK
	if err != nil {
		status = message.TxStatusTimeout
	}
	if cb := msg.TxStatusCallback(); cb != nil {
		cb(msg, status)
	}
	return err
}

// Release implements message.Transceiver. UDP does not pool buffers.
func (u *UDP) Release(msg *message.Telegram) {}

// NewUDPLoopbackPair creates two UDP transceivers on 127.0.0.1 pointed at
// each other, for driving an example host application against a simulated
// peer without a real second machine.
func NewUDPLoopbackPair(factory logging.LoggerFactory) (a, b *UDP, err error) {
	a, err = NewUDP(UDPConfig{ListenAddr: "127.0.0.1:0", PeerAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}, LoggerFactory: factory})
	if err != nil {
		return nil, nil, err
	}
	b, err = NewUDP(UDPConfig{ListenAddr: "127.0.0.1:0", PeerAddr: a.LocalAddr(), LoggerFactory: factory})
	if err != nil {
		return nil, nil, err
	}
	a.peerAddr = b.LocalAddr()
	return a, b, nil
}
