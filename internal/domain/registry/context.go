package registry

import (
	"sync/atomic"

	"github.com/webitel/actor-runtime/internal/domain/mailbox"
	"github.com/webitel/actor-runtime/internal/domain/message"
)

// Callback is the service-supplied message handler. It returns true if it
// took ownership of payload (the runtime must not reuse/free it), false if
// the runtime should discard it once the call returns.
type Callback func(ctx *Context, ud any, typ message.Type, session int32, source uint32, payload []byte) bool

// Context is a single service instance: its module, its mailbox, its
// callback, and the bookkeeping the registry/scheduler need around it.
//
// ref starts at 2 — one held by the registry slot, one by the creator —
// and drops to 0 only once both the registry has retired the handle and
// the last in-flight Grab has released it (spec.md §3). Adapted from the
// teacher's connect.go/cell.go atomic-refcount idiom, generalized from a
// per-connection object to the service context itself.
type Context struct {
	Instance any
	handle   Handle
	ref      atomic.Int32

	Mailbox *mailbox.Mailbox

	cb   Callback
	ud   any
	name string // module name, for LAUNCH logging

	session atomic.Int32

	initDone atomic.Bool
	endless  atomic.Bool
}

// NewContext constructs a context with the initial refcount of 2.
func NewContext(name string, instance any, cb Callback, ud any) *Context {
	c := &Context{
		Instance: instance,
		cb:       cb,
		ud:       ud,
		name:     name,
	}
	c.ref.Store(2)
	return c
}

// Handle returns the context's assigned handle. Zero until Register runs.
func (c *Context) Handle() Handle {
	return c.handle
}

// Name returns the module name the context was created from.
func (c *Context) Name() string {
	return c.name
}

// SetCallback installs the message handler a module registers from
// within its Init (skynet_callback's Go equivalent). ud is opaque
// caller state threaded through to every Dispatch call.
func (c *Context) SetCallback(cb Callback, ud any) {
	c.cb = cb
	c.ud = ud
}

// Grab increments the refcount. Callers (e.g. Registry.Grab) must pair
// every Grab with a Release.
func (c *Context) Grab() {
	c.ref.Add(1)
}

// Release decrements the refcount and returns true if it reached zero,
// meaning the caller must tear the context down (release the module
// instance, mark the mailbox for drainage).
func (c *Context) Release() bool {
	return c.ref.Add(-1) == 0
}

// NewSession allocates a new, always-positive session id (31 bits,
// monotonic, wrapping while preserving sign — spec.md §3).
func (c *Context) NewSession() int32 {
	return c.session.Add(1) & 0x7fffffff
}

// PeekNextSession reports the session id the next NewSession call will
// allocate, without consuming it (skynet_server.c's
// `context->session_id+1` — LOCK locks onto that session so a reply
// to the very next outgoing call lands on a matching, fast-pathed
// session; it must not advance the counter itself).
func (c *Context) PeekNextSession() int32 {
	return (c.session.Load() + 1) & 0x7fffffff
}

// SetInit marks the context's module Init as having completed
// successfully.
func (c *Context) SetInit() {
	c.initDone.Store(true)
}

// Initialized reports whether Init has completed.
func (c *Context) Initialized() bool {
	return c.initDone.Load()
}

// MarkEndless flags the context as stuck in a long callback
// (watchdog.EndlessMarker).
func (c *Context) MarkEndless() {
	c.endless.Store(true)
}

// ConsumeEndless reports and clears the endless flag — the ENDLESS
// command's semantics.
func (c *Context) ConsumeEndless() bool {
	return c.endless.Swap(false)
}

// Dispatch invokes the callback and, unless it reports ownership, frees
// the payload reference by simply letting it go out of scope (Go has no
// explicit free; returning false just means "the runtime does not keep a
// reference alive on the caller's behalf").
func (c *Context) Dispatch(typ message.Type, session int32, source uint32, payload []byte) {
	c.cb(c, c.ud, typ, session, source, payload)
}
