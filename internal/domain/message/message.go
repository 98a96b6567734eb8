// Package message defines the wire shape actors exchange: a source handle,
// a correlation session, and a type-tagged payload.
package message

// Type is the protocol tag carried in a Message's Type field. It tells
// the receiving callback how to interpret the payload.
type Type uint8

const (
	// TypeResponse marks a timer expiry or a request/response reply.
	TypeResponse Type = iota
	// TypeSystem marks transport control traffic (e.g. harbor registration).
	TypeSystem
	// TypeHarbor marks inter-node traffic forwarded by the harbor transport.
	TypeHarbor
	// TypeSocket marks events translated from the socket reactor.
	TypeSocket
	// TypeClient marks ordinary user-originated traffic.
	TypeClient
	// TypeText marks log lines routed to the logger actor.
	TypeText
)

// Flag bits a sender may OR into a Message's Flags field. Neither reaches
// the destination callback, which is never passed Flags.
type Flag uint8

const (
	// FlagDontCopy tells the runtime the sender will not touch Payload
	// again, so it may be handed to the receiver without copying.
	FlagDontCopy Flag = 1 << iota
	// FlagAllocSession tells the runtime to allocate a fresh session on
	// the sender's behalf before the send, overwriting Session.
	FlagAllocSession
)

// Message is the unit of communication between two actors.
type Message struct {
	Source  uint32 // handle of the sender, 0 for runtime-originated messages
	Session int32  // 31-bit positive correlation id, or 0
	Payload []byte
	Type    Type
	Flags   Flag // sender-side only; acted on by Node.Send, never passed to the callback
}

// Session is a 31-bit positive correlation id. Zero means "no session".
type Session int32

// ResponseMessage builds the zero-payload message the timer wheel and the
// TIMEOUT command inject on expiry.
func ResponseMessage(session Session) Message {
	return Message{
		Source:  0,
		Session: int32(session),
		Payload: nil,
		Type:    TypeResponse,
	}
}
