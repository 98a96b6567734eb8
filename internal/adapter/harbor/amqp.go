package harbor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/sony/gobreaker"
)

// AMQPTransport is the clustered transport: every node publishes and
// subscribes to the same topic exchange, each with its own durable
// queue so a node that's briefly down still gets its backlog — the
// same per-node queue-suffixing idiom as the teacher's
// internal/handler/amqp/router.go. Send is wrapped in a circuit
// breaker so a partitioned broker degrades a worker's dispatch loop
// instead of blocking it (the teacher's go.mod lists gobreaker without
// exercising it; this is that wiring).
type AMQPTransport struct {
	publisher  wmmessage.Publisher
	subscriber wmmessage.Subscriber
	breaker    *gobreaker.CircuitBreaker[struct{}]
	logger     *slog.Logger

	mu    sync.Mutex
	names map[string]uint32

	out chan Envelope
}

// NewAMQPTransport dials amqpURI and starts consuming this node's
// harbor queue in the background until ctx is cancelled.
func NewAMQPTransport(ctx context.Context, amqpURI string, nodeID uint8, logger *slog.Logger) (*AMQPTransport, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	queueName := fmt.Sprintf("%s.node-%d", harborTopic, nodeID)
	cfg := amqp.NewDurablePubSubConfig(amqpURI, func(string) string { return queueName })

	pub, err := amqp.NewPublisher(cfg, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("harbor: amqp publisher: %w", err)
	}
	sub, err := amqp.NewSubscriber(cfg, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("harbor: amqp subscriber: %w", err)
	}

	msgs, err := sub.Subscribe(ctx, harborTopic)
	if err != nil {
		return nil, fmt.Errorf("harbor: amqp subscribe: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "harbor-send",
		MaxRequests: 1,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("HARBOR_BREAKER_STATE", slog.String("name", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})

	t := &AMQPTransport{
		publisher:  pub,
		subscriber: sub,
		breaker:    breaker,
		logger:     logger,
		names:      make(map[string]uint32),
		out:        make(chan Envelope, 256),
	}
	go t.pump(ctx, msgs)
	return t, nil
}

func (t *AMQPTransport) pump(ctx context.Context, msgs <-chan *wmmessage.Message) {
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
		case <-ctx.Done():
			return
		}
	}
}

func (t *AMQPTransport) RegisterGlobal(name string, handle uint32) error {
	if isNumericHarborName(name) {
		return ErrNumericGlobalName
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names[name] = handle
	return nil
}

func (t *AMQPTransport) Send(env Envelope) error {
	msg, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	_, err = t.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, t.publisher.Publish(harborTopic, msg)
	})
	return err
}

func (t *AMQPTransport) Recv() <-chan Envelope { return t.out }

func (t *AMQPTransport) Close() error {
	if err := t.publisher.Close(); err != nil {
		return err
	}
	return t.subscriber.Close()
}
