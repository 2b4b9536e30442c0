package inic

import (
	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/unicens-project/ucs-go/internal/apilock"
	"github.com/unicens-project/ucs-go/internal/eventhandler"
	"github.com/unicens-project/ucs-go/internal/observer"
	"github.com/unicens-project/ucs-go/internal/scheduler"
	"github.com/unicens-project/ucs-go/internal/timer"
	"github.com/unicens-project/ucs-go/pkg/dispatch"
	"github.com/unicens-project/ucs-go/pkg/message"
	"github.com/unicens-project/ucs-go/pkg/netstatus"
)

// Config configures an Instance.
type Config struct {
	// Transceiver is the external collaborator the core issues commands
	// through. Required.
	Transceiver message.Transceiver

	// Scheduler, Timers, EventHandler, and Locks are the shared L1-L6
	// substrate the host constructs once per runtime instance and wires
	// into every component, including the Route manager.
	Scheduler    *scheduler.Scheduler
	Timers       *timer.List
	EventHandler *eventhandler.Handler
	Locks        *apilock.Manager
	Now          func() timer.Tick

	// DestinationAddr is the INIC device's own address on the control
	// channel (normally a fixed local address, not a ring address).
	DestinationAddr uint16
	SourceAddr      uint16

	// LoggerFactory creates the instance's logger. If nil, a default
	// factory is used (matching backkem/matter's testpair.go idiom).
	LoggerFactory logging.LoggerFactory
}

// Instance is one INIC command-layer instance: the dispatch table, the
// per-instance API-lock client, the cached state, and the family of
// pub/sub subjects it publishes. Multiple independent instances may
// coexist in one process, each keyed on its own *Instance pointer — there
// is no process-wide singleton.
type Instance struct {
	cfg    Config
	log    logging.LeveledLogger
	table  *dispatch.Table
	lock   *apilock.Client
	status *netstatus.Cache
	nodes  *netstatus.NodeTable

	// Published subjects.
	TxMsgObjAvail    observer.Subject
	MostPortStatus   observer.Subject
	ResMonitor       observer.Subject
	GpioTriggerEvent observer.Subject
	DeviceStatusSub  observer.Subject

	InitResult observer.SingleSubject

	// State keys: caches for DeviceStatus, DeviceVersion, MostPortStatus.
	// NetworkStatus/NetworkConfig are owned by the netstatus.Cache.
	deviceStatus     []byte
	deviceStatusOK   bool
	deviceVersion    []byte
	deviceVersionOK  bool
	mostPortStatus   []byte
	mostPortStatusOK bool

	startupLocked   bool
	gpioFirstReport bool

	// outstanding maps a method bit to the SingleSubject awaiting its
	// result, so a GC timeout or termination event can resolve it even
	// though neither carries the subject itself. Populated by call() and
	// cleared whenever a result (success, error, Tx failure, or timeout)
	// is delivered.
	outstanding map[uint32]*observer.SingleSubject

	// correlation carries a per-request diagnostic id, logged at send and
	// again at resolution so a slow or lost response can be traced through
	// logs without the wire protocol itself ever carrying the id.
	correlation map[uint32]uuid.UUID
}

// New creates an Instance bound to the shared runtime substrate in cfg.
func New(cfg Config) *Instance {
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	in := &Instance{
		cfg:             cfg,
		log:             cfg.LoggerFactory.NewLogger("inic"),
		table:           dispatch.NewTable(),
		status:          netstatus.New(),
		nodes:           netstatus.NewNodeTable(),
		gpioFirstReport: true,
		outstanding:     make(map[uint32]*observer.SingleSubject),
		correlation:     make(map[uint32]uuid.UUID),
	}
	in.lock = cfg.Locks.Register(timeoutObserver{in})
	in.registerHandlers()
	return in
}

// NetworkStatusCache returns the network status cache fed by this
// instance's NetworkStatus/NetworkConfig commands.
func (in *Instance) NetworkStatusCache() *netstatus.Cache { return in.status }

// NodeTable returns the node table fed by this instance's status updates.
func (in *Instance) NodeTable() *netstatus.NodeTable { return in.nodes }

// OnReceive decodes an inbound telegram and routes it to its registered
// handler. Install this as the transceiver's receive hook.
func (in *Instance) OnReceive(msg *message.Telegram) {
	if err := in.table.Dispatch(msg); err != nil {
		in.log.Debugf("no handler for function=0x%04x op=%v", msg.ID.FunctionID, msg.ID.OpType)
	}
}

// timeoutObserver bridges apilock.TimeoutEvent/TerminateEvent back into
// Instance so a single switch can decide how to resolve a stuck
// SingleSubject.
type timeoutObserver struct{ in *Instance }

func (t timeoutObserver) Notify(data any) {
	switch ev := data.(type) {
	case apilock.TimeoutEvent:
		t.in.resolveOutstanding(ev.Bit, Result{Code: ResultErrTimeout})
	case apilock.TerminateEvent:
		bit := ev.Bits
		for b := uint32(1); bit != 0; b <<= 1 {
			if b == 0 {
				break
			}
			if bit&b != 0 {
				bit &^= b
				t.in.resolveOutstanding(b, Result{Code: ResultErrSystem})
			}
		}
	}
}

