// Package socket implements the socket reactor skynet_socket.h leaves
// external (spec.md §1, §6): an HTTP server accepting WebSocket
// upgrades via chi/gorilla (the teacher's internal/handler/ws/delivery.go
// pump-loop idiom), translating frames into PTYPE_SOCKET messages
// delivered to the owning service handle.
package socket

// Kind is a socket reactor event kind (skynet_socket.h's enum).
type Kind int

const (
	KindData Kind = iota
	KindConnect
	KindClose
	KindAccept
	KindError
	KindExit
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindConnect:
		return "CONNECT"
	case KindClose:
		return "CLOSE"
	case KindAccept:
		return "ACCEPT"
	case KindError:
		return "ERROR"
	case KindExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// Event is one socket occurrence, already associated with the service
// handle that owns the connection it came from.
type Event struct {
	Kind    Kind
	Handle  uint32
	Payload []byte

	connID uint64
}
