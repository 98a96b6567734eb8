package harbor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// GoChannelTransport is the --standalone transport: no actual network
// hop, just an in-process watermill bus. Global names are tracked in a
// plain map since there is only ever one node to ask.
type GoChannelTransport struct {
	bus    *gochannel.GoChannel
	logger *slog.Logger

	mu    sync.Mutex
	names map[string]uint32

	out chan Envelope
	ctx context.Context
}

// NewGoChannelTransport builds a standalone transport and starts
// consuming harborTopic in the background until ctx is cancelled.
func NewGoChannelTransport(ctx context.Context, logger *slog.Logger) (*GoChannelTransport, error) {
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))

	msgs, err := bus.Subscribe(ctx, harborTopic)
	if err != nil {
		return nil, fmt.Errorf("harbor: subscribe: %w", err)
	}

	t := &GoChannelTransport{
		bus:    bus,
		logger: logger,
		names:  make(map[string]uint32),
		out:    make(chan Envelope, 256),
		ctx:    ctx,
	}
	go t.pump(msgs)
	return t, nil
}

func (t *GoChannelTransport) pump(msgs <-chan *wmmessage.Message) {
	for m := range msgs {
		env, err := decodeEnvelope(m)
		if err != nil {
			t.logger.Error("HARBOR_DECODE_FAILED", slog.Any("err", err))
			m.Nack()
			continue
		}
		m.Ack()
		select {
		case t.out <- env:
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *GoChannelTransport) RegisterGlobal(name string, handle uint32) error {
	if isNumericHarborName(name) {
		return ErrNumericGlobalName
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names[name] = handle
	return nil
}

func (t *GoChannelTransport) Send(env Envelope) error {
	msg, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	return t.bus.Publish(harborTopic, msg)
}

func (t *GoChannelTransport) Recv() <-chan Envelope { return t.out }

func (t *GoChannelTransport) Close() error {
	return t.bus.Close()
}

func isNumericHarborName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
