package inic

import (
	"encoding/binary"

	"github.com/unicens-project/ucs-go/internal/observer"
	"github.com/unicens-project/ucs-go/pkg/message"
	"github.com/unicens-project/ucs-go/pkg/netstatus"
)

// registerHandlers wires every command's Rx handler, plus the unsolicited
// Status-only notification handlers that feed the instance's pub/sub
// subjects without going through the request/response lock template.
func (in *Instance) registerHandlers() {
	// Request/response commands following the shared call template.
	in.registerResultHandler(message.FuncDeviceStatus, []message.OpType{message.OpTypeResult}, decodeRaw)
	in.registerResultHandler(message.FuncDeviceVersion, []message.OpType{message.OpTypeResult}, decodeRaw)
	in.registerResultHandler(message.FuncDevicePowerOff, []message.OpType{message.OpTypeResult}, nil)
	in.registerResultHandler(message.FuncDeviceAttach, []message.OpType{message.OpTypeResult}, nil)
	in.registerResultHandler(message.FuncDeviceSync, []message.OpType{message.OpTypeResult}, nil)
	in.registerResultHandler(message.FuncMostPortStatus, []message.OpType{message.OpTypeResult}, decodeRaw)
	in.table.Register(message.Key{Function: message.FuncNetworkStatus, Op: message.OpTypeResult}, in.onNetworkStatusReply)
	in.table.Register(message.Key{Function: message.FuncNetworkStatus, Op: message.OpTypeError}, in.onNetworkStatusReply)
	in.table.Register(message.Key{Function: message.FuncNetworkConfig, Op: message.OpTypeResult}, in.onNetworkConfigReply)
	in.table.Register(message.Key{Function: message.FuncNetworkConfig, Op: message.OpTypeStatus}, in.onNetworkConfigReply)
	in.table.Register(message.Key{Function: message.FuncNetworkConfig, Op: message.OpTypeError}, in.onNetworkConfigReply)
	in.registerResultHandler(message.FuncNetworkTriggerRBD, []message.OpType{message.OpTypeStartResult}, nil)
	in.registerResultHandler(message.FuncNetworkAttach, []message.OpType{message.OpTypeResult}, nil)
	in.registerResultHandler(message.FuncNetworkDetach, []message.OpType{message.OpTypeResult}, nil)
	in.registerResultHandler(message.FuncNetworkForceNotAvail, []message.OpType{message.OpTypeResult}, nil)
	in.registerResultHandler(message.FuncNetworkSysDiag, []message.OpType{message.OpTypeStartResult}, decodeRaw)
	in.registerResultHandler(message.FuncNetworkBackChannelDiag, []message.OpType{message.OpTypeStartResult}, decodeRaw)
	in.registerResultHandler(message.FuncResourceDestroy, []message.OpType{message.OpTypeResult}, nil)
	in.registerResultHandler(message.FuncResourceInvalidList, []message.OpType{message.OpTypeResult}, decodeRaw)

	// NetworkStartup uses the startup_locked boolean instead of the
	// generic GC timeout; NetworkShutdown goes through the shared template.
	in.table.Register(message.Key{Function: message.FuncNetworkStartup, Op: message.OpTypeResult}, in.onStartupResult)
	in.table.Register(message.Key{Function: message.FuncNetworkStartup, Op: message.OpTypeError}, in.onStartupResult)
	in.registerResultHandler(message.FuncNetworkShutdown, []message.OpType{message.OpTypeResult}, nil)

	// Socket-create family: all share one payload shape and one method
	// bit class for this reduced surface (full per-transport framing is
	// out of scope; the XRM build itself is treated as an external
	// collaborator result).
	for _, fn := range []message.FunctionID{
		message.FuncSocketCreateMOST, message.FuncSocketCreateMLB, message.FuncSocketCreateUSB,
		message.FuncSocketCreateStream, message.FuncSocketCreatePCI, message.FuncSocketCreateGPIO,
		message.FuncSocketCreateI2C, message.FuncSocketCreateRMCK, message.FuncSocketCreateSplitter,
		message.FuncSocketCreateCombiner,
	} {
		in.registerResultHandler(fn, []message.OpType{message.OpTypeResult}, decodeConnectionLabel)
	}

	// Unsolicited status pushes: these aren't replies to a request the
	// instance issued, so they bypass the lock template entirely and
	// notify a persistent Subject directly.
	in.table.Register(message.Key{Function: message.FuncNetworkStatus, Op: message.OpTypeStatus}, in.onNetworkStatusPush)
	in.table.Register(message.Key{Function: message.FuncMostPortStatus, Op: message.OpTypeStatus}, in.onMostPortStatusPush)
	in.table.Register(message.Key{Function: message.FuncResourceMonitor, Op: message.OpTypeStatus}, in.onResMonitorPush)
	in.table.Register(message.Key{Function: message.FuncSocketCreateGPIO, Op: message.OpTypeStatus}, in.onGpioTriggerPush)
	in.table.Register(message.Key{Function: message.FuncDeviceStatus, Op: message.OpTypeStatus}, in.onDeviceStatusPush)
}

func decodeRaw(payload []byte) (any, error) {
	cp := append([]byte(nil), payload...)
	return cp, nil
}

func decodeConnectionLabel(payload []byte) (any, error) {
	if len(payload) < 2 {
		return nil, errShortPayload
	}
	return binary.BigEndian.Uint16(payload), nil
}

func parseNetworkConfig(payload []byte) (netstatus.Config, error) {
	if len(payload) < 5 {
		return netstatus.Config{}, errShortPayload
	}
	return netstatus.Config{
		NodeAddress:  binary.BigEndian.Uint16(payload[0:2]),
		GroupAddress: binary.BigEndian.Uint16(payload[2:4]),
		LLRBC:        payload[4],
	}, nil
}

func parseNetworkStatus(payload []byte) (netstatus.Status, error) {
	if len(payload) < 11 {
		return netstatus.Status{}, errShortPayload
	}
	return netstatus.Status{
		Availability:    netstatus.Availability(payload[0]),
		AvailInfo:       payload[1],
		TransitionCause: netstatus.TransitionCause(payload[2]),
		Events:          binary.BigEndian.Uint32(payload[3:7]),
		PacketBW:        binary.BigEndian.Uint16(payload[7:9]),
		NodeAddress:     binary.BigEndian.Uint16(payload[9:11]),
	}, nil
}

// --- public command surface -------------------------------------------

// DeviceStatusGet issues FuncDeviceStatus/Get.
func (in *Instance) DeviceStatusGet(obs observer.Observer) Return {
	return in.call(BitDeviceStatusGet, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncDeviceStatus, OpType: message.OpTypeGet}, nil, obs)
}

// DeviceVersionGet issues FuncDeviceVersion/Get.
func (in *Instance) DeviceVersionGet(obs observer.Observer) Return {
	return in.call(BitDeviceVersionGet, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncDeviceVersion, OpType: message.OpTypeGet}, nil, obs)
}

// MostPortStatusGet issues FuncMostPortStatus/Get.
func (in *Instance) MostPortStatusGet(obs observer.Observer) Return {
	return in.call(BitMostPortStatusGet, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncMostPortStatus, OpType: message.OpTypeGet}, nil, obs)
}

// NetworkConfigGet issues FuncNetworkConfig/Get.
func (in *Instance) NetworkConfigGet(obs observer.Observer) Return {
	return in.call(BitNetworkConfigGet, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncNetworkConfig, OpType: message.OpTypeGet}, nil, obs)
}

// NetworkConfigSet issues FuncNetworkConfig/SetGet with a combined
// write-then-readback acknowledgement.
func (in *Instance) NetworkConfigSet(cfg netstatus.Config, obs observer.Observer) Return {
	payload := make([]byte, 5)
	binary.BigEndian.PutUint16(payload[0:2], cfg.NodeAddress)
	binary.BigEndian.PutUint16(payload[2:4], cfg.GroupAddress)
	payload[4] = cfg.LLRBC
	return in.call(BitNetworkConfigSet, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncNetworkConfig, OpType: message.OpTypeSetGet}, payload, obs)
}

// NetworkTriggerRBD issues FuncNetworkTriggerRBD/Start. Ring Break
// Diagnosis tolerates more than one GC interval; callers wanting to
// re-arm on timeout should re-issue from their timeout observer up to
// their own retry budget.
func (in *Instance) NetworkTriggerRBD(obs observer.Observer) Return {
	return in.call(BitNetworkTriggerRBD, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncNetworkTriggerRBD, OpType: message.OpTypeStart}, nil, obs)
}

// NetworkShutdown issues FuncNetworkShutdown/Set.
func (in *Instance) NetworkShutdown(obs observer.Observer) Return {
	return in.call(BitNetworkShutdown, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncNetworkShutdown, OpType: message.OpTypeSet}, nil, obs)
}

// NetworkAttach issues FuncNetworkAttach/Set.
func (in *Instance) NetworkAttach(obs observer.Observer) Return {
	return in.call(BitNetworkAttach, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncNetworkAttach, OpType: message.OpTypeSet}, nil, obs)
}

// NetworkDetach issues FuncNetworkDetach/Set.
func (in *Instance) NetworkDetach(obs observer.Observer) Return {
	return in.call(BitNetworkDetach, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncNetworkDetach, OpType: message.OpTypeSet}, nil, obs)
}

// NetworkForceNotAvailable issues FuncNetworkForceNotAvail/Set.
func (in *Instance) NetworkForceNotAvailable(obs observer.Observer) Return {
	return in.call(BitNetworkForceNotAvail, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncNetworkForceNotAvail, OpType: message.OpTypeSet}, nil, obs)
}

// DiagCapability gates the full-streaming diagnosis commands behind a
// capability flag, for commands the device reports ErrNotSupported for
// on some port types.
type DiagCapability struct {
	SysDiagSupported         bool
	BackChannelDiagSupported bool
}

// NetworkSysDiag issues FuncNetworkSysDiag/Start, gated by cap.
func (in *Instance) NetworkSysDiag(cap DiagCapability, obs observer.Observer) Return {
	if !cap.SysDiagSupported {
		return ErrNotSupported
	}
	return in.call(BitNetworkSysDiag, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncNetworkSysDiag, OpType: message.OpTypeStart}, nil, obs)
}

// NetworkBackChannelDiag issues FuncNetworkBackChannelDiag/Start, gated by
// cap.
func (in *Instance) NetworkBackChannelDiag(cap DiagCapability, obs observer.Observer) Return {
	if !cap.BackChannelDiagSupported {
		return ErrNotSupported
	}
	return in.call(BitNetworkBackChannelDiag, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncNetworkBackChannelDiag, OpType: message.OpTypeStart}, nil, obs)
}

// SocketCreate issues the socket-create command for fn (one of the
// FuncSocketCreate* families) with an opaque, transport-specific payload.
// It is the building block the endpoint/XRM collaborator layer issues
// from behind its own interface.
func (in *Instance) SocketCreate(fn message.FunctionID, payload []byte, obs observer.Observer) Return {
	return in.call(BitSocketCreate, message.ID{FBlockID: message.FBlockEXC, FunctionID: fn, OpType: message.OpTypeSet}, payload, obs)
}

// ResourceDestroy issues FuncResourceDestroy/Set for the given connection
// labels.
func (in *Instance) ResourceDestroy(labels []uint16, obs observer.Observer) Return {
	payload := make([]byte, 2*len(labels))
	for i, l := range labels {
		binary.BigEndian.PutUint16(payload[2*i:2*i+2], l)
	}
	return in.call(BitResourceDestroy, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncResourceDestroy, OpType: message.OpTypeSet}, payload, obs)
}

// ResourceInvalidList issues FuncResourceInvalidList/Get.
func (in *Instance) ResourceInvalidList(obs observer.Observer) Return {
	return in.call(BitResourceInvalidList, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncResourceInvalidList, OpType: message.OpTypeGet}, nil, obs)
}

// --- unsolicited push handlers ----------------------------------------

func (in *Instance) onNetworkStatusPush(msg *message.Telegram) {
	st, err := parseNetworkStatus(msg.Payload)
	if err != nil {
		return
	}
	in.nodes.Observe(st.NodeAddress, st.NodePosition)
	in.status.IngestStatus(st)
}

// onNetworkStatusReply handles the Get reply for FuncNetworkStatus,
// ingesting into the cache exactly like the unsolicited push and also
// resolving the outstanding request.
func (in *Instance) onNetworkStatusReply(msg *message.Telegram) {
	single, _ := msg.InfoPtr.(*observer.SingleSubject)
	var bit uint32
	if single != nil {
		bit = single.UserMask
	}
	if msg.ID.OpType == message.OpTypeError {
		in.resolve(bit, DecodeErrorPayload(msg.Payload))
		return
	}
	st, err := parseNetworkStatus(msg.Payload)
	if err != nil {
		in.resolve(bit, Result{Code: ResultErrSystem})
		return
	}
	in.nodes.Observe(st.NodeAddress, st.NodePosition)
	in.status.IngestStatus(st)
	in.resolve(bit, Result{Code: ResultSuccess, DataInfo: st})
}

// NetworkStatusGet issues FuncNetworkStatus/Get.
func (in *Instance) NetworkStatusGet(obs observer.Observer) Return {
	return in.call(BitNetworkStatusGet, message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncNetworkStatus, OpType: message.OpTypeGet}, nil, obs)
}

// onNetworkConfigReply handles both the Get/SetGet reply (which resolves
// an outstanding request) and the unsolicited Status push (which does
// not); either way the cache is updated and its config subscribers are
// notified.
func (in *Instance) onNetworkConfigReply(msg *message.Telegram) {
	single, _ := msg.InfoPtr.(*observer.SingleSubject)
	var bit uint32
	if single != nil {
		bit = single.UserMask
	}

	if msg.ID.OpType == message.OpTypeError {
		in.resolve(bit, DecodeErrorPayload(msg.Payload))
		return
	}
	cfg, err := parseNetworkConfig(msg.Payload)
	if err != nil {
		in.resolve(bit, Result{Code: ResultErrSystem})
		return
	}
	in.status.IngestConfig(cfg)
	if bit != 0 {
		in.resolve(bit, Result{Code: ResultSuccess, DataInfo: cfg})
	}
}

func (in *Instance) onMostPortStatusPush(msg *message.Telegram) {
	in.mostPortStatus = append([]byte(nil), msg.Payload...)
	in.mostPortStatusOK = true
	in.MostPortStatus.Notify(in.mostPortStatus)
}

func (in *Instance) onResMonitorPush(msg *message.Telegram) {
	in.ResMonitor.Notify(append([]byte(nil), msg.Payload...))
}

// GpioTriggerEventData is delivered on the GpioTriggerEvent subject.
// First is true exactly once per instance lifetime (or per re-open, see
// ResetGpioFirstReport) — the first emission is a state snapshot, not a
// change notification.
type GpioTriggerEventData struct {
	Payload []byte
	First   bool
}

func (in *Instance) onGpioTriggerPush(msg *message.Telegram) {
	first := in.gpioFirstReport
	in.gpioFirstReport = false
	in.GpioTriggerEvent.Notify(GpioTriggerEventData{Payload: append([]byte(nil), msg.Payload...), First: first})
}

// ResetGpioFirstReport re-arms the one-shot "this is a snapshot" flag.
// Call it whenever the instance's network attach sequence restarts, so a
// re-attached GPIO port reports its first event as a snapshot again.
// Nothing inside the library calls it.
func (in *Instance) ResetGpioFirstReport() {
	in.gpioFirstReport = true
}

func (in *Instance) onDeviceStatusPush(msg *message.Telegram) {
	in.deviceStatus = append([]byte(nil), msg.Payload...)
	in.deviceStatusOK = true
	in.DeviceStatusSub.Notify(in.deviceStatus)
}

func (in *Instance) onStartupResult(msg *message.Telegram) {
	in.startupLocked = false
	single, _ := msg.InfoPtr.(*observer.SingleSubject)
	if single == nil {
		return
	}
	var result Result
	if msg.ID.OpType == message.OpTypeError {
		result = DecodeErrorPayload(msg.Payload)
	} else {
		result = Result{Code: ResultSuccess}
	}
	single.Notify(result)
}

// NetworkStartup issues FuncNetworkStartup/Set. Network startup cannot
// time out via the generic GC; it uses its own boolean, cleared by
// Result, Error, a termination event (see Terminate), or a failed
// transmission of the request.
func (in *Instance) NetworkStartup(obs observer.Observer) Return {
	if in.startupLocked {
		return ErrApiLocked
	}
	msg, ok := in.cfg.Transceiver.AllocTx(0)
	if !ok {
		return ErrBufferOverflow
	}
	msg.DestinationAddr = in.cfg.DestinationAddr
	msg.SourceAddr = in.cfg.SourceAddr
	msg.ID = message.ID{FBlockID: message.FBlockEXC, FunctionID: message.FuncNetworkStartup, OpType: message.OpTypeSet}
	single := &observer.SingleSubject{}
	if obs != nil {
		_ = single.Add(obs)
	}
	msg.InfoPtr = single
	msg.SetTxStatusCallback(func(m *message.Telegram, status message.TxStatus) {
		if status != message.TxStatusOK {
			in.startupLocked = false
			single.Notify(Result{Code: ResultErrTransmission, Info: []byte{byte(status)}})
		}
		in.cfg.Transceiver.Release(m)
		in.TxMsgObjAvail.Notify(struct{}{})
	})
	in.startupLocked = true
	if err := in.cfg.Transceiver.Send(msg); err != nil {
		in.startupLocked = false
		single.Notify(Result{Code: ResultErrTransmission})
	}
	return Success
}

// Terminate tears down all outstanding requests and clears the startup
// lock, as termination events propagate globally.
func (in *Instance) Terminate() {
	in.cfg.Locks.Teardown()
	in.startupLocked = false
}
