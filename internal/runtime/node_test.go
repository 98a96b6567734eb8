package runtime

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/actor-runtime/internal/domain/env"
	"github.com/webitel/actor-runtime/internal/domain/message"
	"github.com/webitel/actor-runtime/internal/domain/modhost"
	"github.com/webitel/actor-runtime/internal/domain/registry"
	"github.com/webitel/actor-runtime/internal/domain/runqueue"
	"github.com/webitel/actor-runtime/internal/domain/timer"
	"github.com/webitel/actor-runtime/internal/domain/watchdog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestNode(t *testing.T, modules ...*modhost.Module) *Node {
	t.Helper()
	reg := registry.New(registry.WithNode(1))
	rq := runqueue.New()
	modReg, err := modhost.NewRegistry(modules...)
	require.NoError(t, err)
	node := New(1, reg, rq, modReg, env.New(), discardLogger())
	node.Watchdog = watchdog.New(1, node)
	node.Wheel = timer.New(node, 0, 0)
	return node
}

func echoModule(name string, received *[]message.Type) *modhost.Module {
	return &modhost.Module{
		Name: name,
		Init: func(ctx *registry.Context, inst any, params string) error {
			ctx.SetCallback(func(c *registry.Context, ud any, typ message.Type, session int32, source uint32, payload []byte) bool {
				*received = append(*received, typ)
				return false
			}, nil)
			return nil
		},
	}
}

func TestContextNewSucceeds(t *testing.T) {
	var received []message.Type
	node := newTestNode(t, echoModule("echo", &received))

	ctx, err := node.ContextNew("echo", "")
	require.NoError(t, err)
	assert.NotZero(t, ctx.Handle())
	assert.True(t, ctx.Initialized())
	assert.EqualValues(t, 1, node.LiveCount())
}

func TestContextNewFailsOnUnknownModule(t *testing.T) {
	node := newTestNode(t)
	_, err := node.ContextNew("ghost", "")
	assert.Error(t, err)
	assert.EqualValues(t, 0, node.LiveCount())
}

func TestContextNewFailsOnInitError(t *testing.T) {
	node := newTestNode(t, &modhost.Module{
		Name: "broken",
		Init: func(ctx *registry.Context, inst any, params string) error {
			return fmt.Errorf("boom")
		},
	})
	_, err := node.ContextNew("broken", "")
	assert.Error(t, err)
	assert.EqualValues(t, 0, node.LiveCount())
}

func TestSendDeliversToMailbox(t *testing.T) {
	var received []message.Type
	node := newTestNode(t, echoModule("echo", &received))
	ctx, err := node.ContextNew("echo", "")
	require.NoError(t, err)

	ok := node.Send(ctx.Handle(), message.Message{Type: message.TypeClient})
	assert.True(t, ok)
	assert.Equal(t, 1, ctx.Mailbox.Length())
}

func TestSendToUnknownHandleFails(t *testing.T) {
	node := newTestNode(t)
	ok := node.Send(registry.NewHandle(1, 99), message.Message{})
	assert.False(t, ok)
}

func TestSendCopiesPayloadUnlessDontCopy(t *testing.T) {
	var received []message.Type
	node := newTestNode(t, echoModule("echo", &received))
	ctx, err := node.ContextNew("echo", "")
	require.NoError(t, err)

	payload := []byte("hello")
	ok := node.Send(ctx.Handle(), message.Message{Type: message.TypeClient, Payload: payload})
	require.True(t, ok)
	msg, ok := ctx.Mailbox.Pop()
	require.True(t, ok)
	assert.Equal(t, payload, msg.Payload)
	payload[0] = 'x'
	assert.NotEqual(t, payload[0], msg.Payload[0])

	dontCopy := []byte("world")
	ok = node.Send(ctx.Handle(), message.Message{Type: message.TypeClient, Payload: dontCopy, Flags: message.FlagDontCopy})
	require.True(t, ok)
	msg, ok = ctx.Mailbox.Pop()
	require.True(t, ok)
	dontCopy[0] = 'x'
	assert.Equal(t, dontCopy[0], msg.Payload[0])
}

func TestSendAllocSessionOverwritesSessionFromSenderContext(t *testing.T) {
	var received []message.Type
	node := newTestNode(t, echoModule("echo", &received))
	sender, err := node.ContextNew("echo", "")
	require.NoError(t, err)
	receiver, err := node.ContextNew("echo", "")
	require.NoError(t, err)

	want := sender.PeekNextSession()
	ok := node.Send(receiver.Handle(), message.Message{
		Source:  uint32(sender.Handle()),
		Session: 0,
		Type:    message.TypeClient,
		Flags:   message.FlagAllocSession,
	})
	require.True(t, ok)

	msg, ok := receiver.Mailbox.Pop()
	require.True(t, ok)
	assert.Equal(t, want, msg.Session)
}

func TestDeliverPushesResponseMessage(t *testing.T) {
	var received []message.Type
	node := newTestNode(t, echoModule("echo", &received))
	ctx, err := node.ContextNew("echo", "")
	require.NoError(t, err)

	node.Deliver(uint32(ctx.Handle()), 42)
	assert.Equal(t, 1, ctx.Mailbox.Length())
}

func TestHandleExitNotifiesMonitor(t *testing.T) {
	var received []message.Type
	node := newTestNode(t, echoModule("watcher", &received), echoModule("victim", &received))

	watcher, err := node.ContextNew("watcher", "")
	require.NoError(t, err)
	victim, err := node.ContextNew("victim", "")
	require.NoError(t, err)

	node.monitorExit.Store(uint32(watcher.Handle()))
	node.HandleExit(victim.Handle())

	assert.EqualValues(t, 1, node.LiveCount())
	assert.Equal(t, 1, watcher.Mailbox.Length()) // the exit notice is the only message pushed
}
