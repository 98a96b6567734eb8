package socket

import (
	"encoding/json"
	"fmt"

	"github.com/webitel/actor-runtime/internal/domain/message"
)

// wirePayload is the PTYPE_SOCKET message body: which connection the event
// came from and, for DATA, the frame bytes.
type wirePayload struct {
	Kind   Kind   `json:"kind"`
	Socket uint64 `json:"socket"`
	Data   []byte `json:"data,omitempty"`
}

// EncodeMessage turns a reactor Event into the message its owner handle
// receives, tagged PTYPE_SOCKET.
func EncodeMessage(ev Event) (message.Message, error) {
	body, err := json.Marshal(wirePayload{Kind: ev.Kind, Socket: ev.connID, Data: ev.Payload})
	if err != nil {
		return message.Message{}, fmt.Errorf("socket: encode event: %w", err)
	}
	return message.Message{
		Type:    message.TypeSocket,
		Payload: body,
	}, nil
}

// DecodeMessage recovers the socket id, kind, and frame bytes from a
// PTYPE_SOCKET message payload — what a module's callback calls on the
// messages it receives so it can reply via Reactor.Write.
func DecodeMessage(m message.Message) (kind Kind, socketID uint64, data []byte, err error) {
	var p wirePayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return 0, 0, nil, fmt.Errorf("socket: decode event: %w", err)
	}
	return p.Kind, p.Socket, p.Data, nil
}
