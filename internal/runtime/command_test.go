package runtime

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/actor-runtime/internal/domain/message"
	"github.com/webitel/actor-runtime/internal/domain/registry"
)

func newCommandTestNode(t *testing.T) (*Node, *registry.Context) {
	t.Helper()
	var received []message.Type
	node := newTestNode(t, echoModule("echo", &received))
	ctx, err := node.ContextNew("echo", "")
	require.NoError(t, err)
	return node, ctx
}

func TestCommandNowAndStartTime(t *testing.T) {
	node, ctx := newCommandTestNode(t)

	now, err := node.Command(ctx, "NOW", "")
	require.NoError(t, err)
	assert.Equal(t, "0", now)

	start, err := node.Command(ctx, "STARTTIME", "")
	require.NoError(t, err)
	assert.Equal(t, "0", start)
}

func TestCommandTimeoutSchedulesTimer(t *testing.T) {
	node, ctx := newCommandTestNode(t)

	session, err := node.Command(ctx, "TIMEOUT", "3")
	require.NoError(t, err)
	assert.NotEmpty(t, session)

	node.Wheel.Tick()
	node.Wheel.Tick()
	node.Wheel.Tick()
	assert.Equal(t, 1, ctx.Mailbox.Length())
}

func TestCommandRegWithEmptyNameReturnsHandle(t *testing.T) {
	node, ctx := newCommandTestNode(t)

	out, err := node.Command(ctx, "REG", "")
	require.NoError(t, err)
	assert.Equal(t, ":"+hexHandle(ctx.Handle()), out)
}

func TestCommandRegLocalName(t *testing.T) {
	node, ctx := newCommandTestNode(t)

	out, err := node.Command(ctx, "REG", ".echo")
	require.NoError(t, err)
	assert.Equal(t, ".echo", out)

	queried, err := node.Command(ctx, "QUERY", ".echo")
	require.NoError(t, err)
	assert.Equal(t, ":"+hexHandle(ctx.Handle()), queried)
}

func TestCommandRegRejectsNumericName(t *testing.T) {
	node, ctx := newCommandTestNode(t)
	_, err := node.Command(ctx, "REG", "12345")
	assert.ErrorIs(t, err, ErrNumericGlobalName)
}

func TestCommandGetSetEnv(t *testing.T) {
	node, ctx := newCommandTestNode(t)

	_, err := node.Command(ctx, "SETENV", "thread 8")
	require.NoError(t, err)

	v, err := node.Command(ctx, "GETENV", "thread")
	require.NoError(t, err)
	assert.Equal(t, "8", v)
}

func TestCommandLockUnlockAndMQLen(t *testing.T) {
	node, ctx := newCommandTestNode(t)

	_, err := node.Command(ctx, "LOCK", "")
	require.NoError(t, err)
	_, err = node.Command(ctx, "UNLOCK", "")
	require.NoError(t, err)

	n, err := node.Command(ctx, "MQLEN", "")
	require.NoError(t, err)
	assert.Equal(t, "0", n)
}

// TestCommandLockLocksOntoNextAllocatedSession exercises the exact
// round trip LOCK exists for: lock, make the real outgoing call that
// follows (here, TIMEOUT, which itself allocates a session), and the
// allocated session must equal the one LOCK locked onto so the
// eventual matching reply jumps the queue instead of waiting behind
// whatever else is pending.
func TestCommandLockLocksOntoNextAllocatedSession(t *testing.T) {
	node, ctx := newCommandTestNode(t)

	_, err := node.Command(ctx, "LOCK", "")
	require.NoError(t, err)

	session, err := node.Command(ctx, "TIMEOUT", "5")
	require.NoError(t, err)
	gotSession, err := strconv.ParseInt(session, 10, 32)
	require.NoError(t, err)

	// Push an unrelated message first, then the matching-session one;
	// Lock must have jumped the matching one to the head already.
	ctx.Mailbox.Push(message.Message{Session: 0, Type: message.TypeClient})
	ctx.Mailbox.Push(message.Message{Session: int32(gotSession), Type: message.TypeResponse})

	first, ok := ctx.Mailbox.Pop()
	require.True(t, ok)
	assert.Equal(t, int32(gotSession), first.Session)
}

func TestCommandTimeoutZeroRespondsSameIteration(t *testing.T) {
	node, ctx := newCommandTestNode(t)

	session, err := node.Command(ctx, "TIMEOUT", "0")
	require.NoError(t, err)
	require.NotEmpty(t, session)

	// No Wheel.Tick() call: the response must already be in the
	// mailbox, not waiting on the next tick.
	require.Equal(t, 1, ctx.Mailbox.Length())
	msg, ok := ctx.Mailbox.Pop()
	require.True(t, ok)
	assert.Equal(t, message.TypeResponse, msg.Type)
	assert.Equal(t, session, strconv.FormatInt(int64(msg.Session), 10))
}

func TestCommandEndlessRoundTrip(t *testing.T) {
	node, ctx := newCommandTestNode(t)

	v, err := node.Command(ctx, "ENDLESS", "")
	require.NoError(t, err)
	assert.Equal(t, "0", v)

	ctx.MarkEndless()
	v, err = node.Command(ctx, "ENDLESS", "")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestCommandLaunchCreatesChild(t *testing.T) {
	var received []message.Type
	node := newTestNode(t, echoModule("parent", &received), echoModule("child", &received))
	parent, err := node.ContextNew("parent", "")
	require.NoError(t, err)

	out, err := node.Command(parent, "LAUNCH", "child hello")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.EqualValues(t, 2, node.LiveCount())
}

func TestCommandUnrecognized(t *testing.T) {
	node, ctx := newCommandTestNode(t)
	_, err := node.Command(ctx, "BOGUS", "")
	assert.Error(t, err)
}

func TestParseHandleArgRejectsBareNumber(t *testing.T) {
	_, err := parseHandleArg(registry.New(), "42")
	assert.Error(t, err)
}

func hexHandle(h registry.Handle) string {
	return strconv.FormatUint(uint64(h), 16)
}
