// Package harbor implements the inter-node transport skynet_harbor.c
// names as an external collaborator (spec.md §1): publishing a global
// service name to the cluster, and forwarding TypeHarbor messages
// between nodes. Two adapters are provided: an in-process gochannel
// bus for --standalone single-node deployments, and an AMQP-backed one
// for a real cluster, both built on the teacher's watermill stack
// (internal/handler/amqp/module.go, internal/adapter/pubsub).
package harbor

import "github.com/webitel/actor-runtime/internal/domain/message"

// Envelope is what crosses the wire between nodes: the destination
// handle (so the receiving node's harbor can re-deliver locally) plus
// the message itself.
type Envelope struct {
	Destination uint32
	Msg         message.Message
}

// Transport is the contract internal/runtime.Node.Harbor depends on.
// RegisterGlobal records a service's global name with the transport;
// Send publishes an envelope on the harbor topic that every node
// consumes; Recv delivers every envelope published on that topic,
// whichever node its Destination belongs to, until the transport's
// context is cancelled.
type Transport interface {
	RegisterGlobal(name string, handle uint32) error
	Send(env Envelope) error
	Recv() <-chan Envelope
	Close() error
}

// ErrNumericGlobalName mirrors runtime.ErrNumericGlobalName for
// transports that need to reject numeric names at the registration
// boundary too (skynet_harbor.c asserts on this).
var ErrNumericGlobalName = numericNameError{}

type numericNameError struct{}

func (numericNameError) Error() string {
	return "harbor: a numeric name cannot be registered globally"
}
