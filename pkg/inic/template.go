package inic

import (
	"github.com/google/uuid"

	"github.com/unicens-project/ucs-go/internal/observer"
	"github.com/unicens-project/ucs-go/pkg/message"
)

// decodeFunc decodes a successful Result/StartResult/Status payload into a
// typed value.
type decodeFunc func(payload []byte) (any, error)

// call implements the eight-step command template shared by every INIC
// command: lock, allocate, compose, subscribe, send with a Tx-status
// bridge, and — via registerResultHandler at setup time — decode and
// notify on Rx.
//
// methodBit must be unique to this command within the instance; it is
// used both as the API-lock bit and as the SingleSubject's UserMask.
func (in *Instance) call(methodBit uint32, id message.ID, payload []byte, obs observer.Observer) Return {
	if !in.cfg.Locks.Lock(in.lock, methodBit) {
		return ErrApiLocked
	}

	msg, ok := in.cfg.Transceiver.AllocTx(len(payload))
	if !ok {
		in.cfg.Locks.Release(in.lock, methodBit)
		return ErrBufferOverflow
	}

	msg.DestinationAddr = in.cfg.DestinationAddr
	msg.SourceAddr = in.cfg.SourceAddr
	msg.ID = id
	if len(payload) > 0 {
		msg.Payload = append(msg.Payload[:0], payload...)
	}

	single := &observer.SingleSubject{UserMask: methodBit}
	if obs != nil {
		_ = single.Add(obs)
	}
	msg.InfoPtr = single
	in.outstanding[methodBit] = single

	corrID := uuid.New()
	in.correlation[methodBit] = corrID
	in.log.Debugf("call %s function=0x%04x op=%v bit=0x%x", corrID, msg.ID.FunctionID, msg.ID.OpType, methodBit)
	msg.SetTxStatusCallback(in.onTxStatus)

	if err := in.cfg.Transceiver.Send(msg); err != nil {
		in.onTxStatus(msg, message.TxStatusUnknown)
	}
	return Success
}

// onTxStatus is installed as every outgoing telegram's Tx-status callback.
func (in *Instance) onTxStatus(msg *message.Telegram, status message.TxStatus) {
	if status != message.TxStatusOK {
		single, _ := msg.InfoPtr.(*observer.SingleSubject)
		if single != nil {
			in.resolve(single.UserMask, Result{Code: ResultErrTransmission, Info: []byte{byte(status)}})
		}
	}
	in.cfg.Transceiver.Release(msg)
	in.TxMsgObjAvail.Notify(struct{}{})
}

// registerResultHandler wires a dispatch.Handler for every OpType in
// okOps that decodes a success payload with decode, plus the Error OpType
// for the same function, which always decodes via DecodeErrorPayload.
// This single helper replaces per-command Rx handler boilerplate with one
// template, since the INIC command set is closed and known at compile
// time.
func (in *Instance) registerResultHandler(fn message.FunctionID, okOps []message.OpType, decode decodeFunc) {
	handler := func(msg *message.Telegram) {
		single, _ := msg.InfoPtr.(*observer.SingleSubject)
		bit := uint32(0)
		if single != nil {
			bit = single.UserMask
		}

		var result Result
		if msg.ID.OpType == message.OpTypeError {
			result = DecodeErrorPayload(msg.Payload)
		} else if decode != nil {
			data, err := decode(msg.Payload)
			if err != nil {
				result = Result{Code: ResultErrSystem}
			} else {
				result = Result{Code: ResultSuccess, DataInfo: data}
			}
		} else {
			result = Result{Code: ResultSuccess}
		}
		in.resolve(bit, result)
	}

	for _, op := range okOps {
		in.table.Register(message.Key{Function: fn, Op: op}, handler)
	}
	in.table.Register(message.Key{Function: fn, Op: message.OpTypeError}, handler)
}

// resolve delivers result to the SingleSubject waiting on bit (if any),
// releases the lock, and forgets the outstanding entry. Safe to call more
// than once for the same bit (e.g. a Tx failure followed by a stray late
// Rx): the second call is a no-op because the entry was already removed.
func (in *Instance) resolve(bit uint32, result Result) {
	single, ok := in.outstanding[bit]
	if !ok {
		return
	}
	delete(in.outstanding, bit)
	if id, ok := in.correlation[bit]; ok {
		delete(in.correlation, bit)
		in.log.Debugf("resolve %s bit=0x%x code=%v", id, bit, result.Code)
	}
	single.Notify(result)
	in.cfg.Locks.Release(in.lock, bit)
}

// resolveOutstanding is called by timeoutObserver for GC timeouts and
// termination resets.
func (in *Instance) resolveOutstanding(bit uint32, result Result) {
	in.resolve(bit, result)
}
