package harbor

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	domainmessage "github.com/webitel/actor-runtime/internal/domain/message"
)

// harborTopic is the single topic every node's harbor traffic flows
// through, mirroring the teacher's DeliveryExchange constant
// (internal/handler/amqp/module.go).
const harborTopic = "actor_runtime.harbor"

// wireEnvelope is Envelope's over-the-wire shape. Payload travels as a
// base64-friendly byte slice under JSON's default []byte encoding.
type wireEnvelope struct {
	Destination uint32             `json:"destination"`
	Source      uint32             `json:"source"`
	Session     int32              `json:"session"`
	Type        domainmessage.Type `json:"type"`
	Payload     []byte             `json:"payload"`
}

func encodeEnvelope(env Envelope) (*message.Message, error) {
	body, err := json.Marshal(wireEnvelope{
		Destination: env.Destination,
		Source:      env.Msg.Source,
		Session:     env.Msg.Session,
		Type:        env.Msg.Type,
		Payload:     env.Msg.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("harbor: marshal envelope: %w", err)
	}
	return message.NewMessage(watermill.NewUUID(), body), nil
}

func decodeEnvelope(m *message.Message) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(m.Payload, &w); err != nil {
		return Envelope{}, fmt.Errorf("harbor: unmarshal envelope: %w", err)
	}
	return Envelope{
		Destination: w.Destination,
		Msg: domainmessage.Message{
			Source:  w.Source,
			Session: w.Session,
			Type:    w.Type,
			Payload: w.Payload,
		},
	}, nil
}
