package transceiver

import (
	"encoding/binary"

	"github.com/unicens-project/ucs-go/pkg/message"
)

const headerLen = 11

// encode serialises msg into the simple fixed-header frame the UDP
// transceiver uses. This wire format has no counterpart in the real INIC
// ABI — it exists only so the example host application can carry
// message.Telegram values over an ordinary socket; a real EHC integration
// replaces this package with a driver for its actual physical channel
// (UART, SPI, USB).
func encode(msg *message.Telegram) []byte {
	buf := make([]byte, headerLen+len(msg.Payload))
	buf[0] = byte(msg.ID.FBlockID)
	buf[1] = msg.ID.InstanceID
	binary.BigEndian.PutUint16(buf[2:4], uint16(msg.ID.FunctionID))
	buf[4] = byte(msg.ID.OpType)
	binary.BigEndian.PutUint16(buf[5:7], msg.DestinationAddr)
	binary.BigEndian.PutUint16(buf[7:9], msg.SourceAddr)
	binary.BigEndian.PutUint16(buf[9:11], uint16(len(msg.Payload)))
	copy(buf[headerLen:], msg.Payload)
	return buf
}

func decode(buf []byte) (*message.Telegram, bool) {
	if len(buf) < headerLen {
		return nil, false
	}
	payloadLen := binary.BigEndian.Uint16(buf[9:11])
	if len(buf) < headerLen+int(payloadLen) {
		return nil, false
	}
	payload := make([]byte, payloadLen)
	copy(payload, buf[headerLen:headerLen+int(payloadLen)])
	return &message.Telegram{
		DestinationAddr: binary.BigEndian.Uint16(buf[5:7]),
		SourceAddr:      binary.BigEndian.Uint16(buf[7:9]),
		ID: message.ID{
			FBlockID:   message.FBlockID(buf[0]),
			InstanceID: buf[1],
			FunctionID: message.FunctionID(binary.BigEndian.Uint16(buf[2:4])),
			OpType:     message.OpType(buf[4]),
		},
		Payload: payload,
	}, true
}
