// Package runtime wires the domain primitives (registry, mailbox,
// run-queue, timer, watchdog, env, modhost) into the running node:
// service creation/teardown, the text command surface, message
// delivery, and the worker/timer/socket/monitor goroutine pool.
//
// Grounded on skynet_server.c (skynet_context_new, skynet_command,
// skynet_context_message_dispatch, skynet_handle_retire callers) and
// skynet_start.c (_start, _worker, _timer, _socket, _monitor).
package runtime

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/webitel/actor-runtime/internal/adapter/harbor"
	"github.com/webitel/actor-runtime/internal/domain/env"
	"github.com/webitel/actor-runtime/internal/domain/mailbox"
	"github.com/webitel/actor-runtime/internal/domain/message"
	"github.com/webitel/actor-runtime/internal/domain/modhost"
	"github.com/webitel/actor-runtime/internal/domain/registry"
	"github.com/webitel/actor-runtime/internal/domain/runqueue"
	"github.com/webitel/actor-runtime/internal/domain/timer"
	"github.com/webitel/actor-runtime/internal/domain/watchdog"
)

// Harbor is the inter-node transport a Node hands global REG/name
// resolution traffic and cross-node sends to. Implemented by
// internal/adapter/harbor.Transport.
type Harbor interface {
	RegisterGlobal(name string, handle uint32) error
	Send(env harbor.Envelope) error
}

// Node owns every domain primitive for one process: the handle
// registry, the run-queue, the timer wheel, the watchdog, the
// environment store, the module host, and (optionally) a harbor
// transport for cross-node names.
type Node struct {
	ID uint8

	Registry *registry.Registry
	RunQueue *runqueue.RunQueue
	Wheel    *timer.Wheel
	Watchdog *watchdog.Watchdog
	Env      *env.Store
	Modules  *modhost.Registry
	Harbor   Harbor

	logger *slog.Logger

	monitorExit atomic.Uint32
	live        atomic.Int64
}

// New assembles a Node. wheel and watchdog are constructed by the
// caller (newNode in module.go, or a test) since they need the node
// already built to close the dependency loop (the watchdog marks
// contexts endless via Node.MarkEndless; the wheel delivers via
// Node.Deliver).
func New(id uint8, reg *registry.Registry, rq *runqueue.RunQueue, modules *modhost.Registry, envStore *env.Store, logger *slog.Logger) *Node {
	return &Node{
		ID:       id,
		Registry: reg,
		RunQueue: rq,
		Modules:  modules,
		Env:      envStore,
		logger:   logger,
	}
}

// Deliver implements timer.Sink: the wheel calls this on every expiry,
// and the node turns it into a TypeResponse push to the expired
// session's owner.
func (n *Node) Deliver(handle uint32, session int32) {
	ctx := n.Registry.Grab(registry.Handle(handle))
	if ctx == nil {
		return
	}
	ctx.Mailbox.Push(message.ResponseMessage(message.Session(session)))
	ctx.Release()
}

// MarkEndless implements watchdog.EndlessMarker.
func (n *Node) MarkEndless(handle uint32) {
	ctx := n.Registry.Grab(registry.Handle(handle))
	if ctx == nil {
		return
	}
	ctx.MarkEndless()
	n.logger.Warn("CALLBACK_ENDLESS", slog.Uint64("handle", uint64(handle)))
	ctx.Release()
}

// LiveCount reports how many services are currently registered, the
// scheduler's CHECK_ABORT condition.
func (n *Node) LiveCount() int64 {
	return n.live.Load()
}

// ContextNew resolves module by name, creates and initializes an
// instance, registers a handle and mailbox for it, and on success
// force-enqueues the mailbox so the bootstrap message (if any) can run.
// A module-load or init failure retires the handle and drains the
// mailbox rather than leaving a half-built service around.
func (n *Node) ContextNew(moduleName, params string) (*registry.Context, error) {
	mod, err := n.Modules.Resolve(moduleName)
	if err != nil {
		n.logger.Error("LAUNCH_FAILED", slog.String("module", moduleName), slog.Any("err", err))
		return nil, err
	}

	var inst any
	if mod.Create != nil {
		inst = mod.Create()
	}

	rc := registry.NewContext(moduleName, inst, nil, nil)
	handle, err := n.Registry.Register(rc)
	if err != nil {
		n.logger.Error("LAUNCH_FAILED", slog.String("module", moduleName), slog.Any("err", err))
		return nil, err
	}
	rc.Mailbox = mailbox.New(uint32(handle), n.RunQueue)

	if mod.Init != nil {
		if err := mod.Init(rc, inst, params); err != nil {
			n.logger.Error("LAUNCH_FAILED", slog.String("module", moduleName), slog.Uint64("handle", uint64(handle)), slog.Any("err", err))
			n.Registry.Retire(handle)
			rc.Mailbox.MarkRelease()
			rc.Mailbox.Release()
			return nil, fmt.Errorf("runtime: init %s: %w", moduleName, err)
		}
	}

	rc.SetInit()
	rc.Release() // drop the creator's reference; the registry's remains
	n.live.Add(1)
	n.RunQueue.PushGlobal(rc.Mailbox) // force-enqueue so a bootstrap message (if any) runs
	n.logger.Info("LAUNCH", slog.String("module", moduleName), slog.Uint64("handle", uint64(handle)), slog.String("params", params))
	return rc, nil
}

// Send pushes msg to dest's mailbox, grabbing the context reference for
// the duration of the push. A handle whose node byte doesn't match this
// node is forwarded over Harbor instead of looked up locally. Returns
// false (matching context_push's "undeliverable" signal) if dest no
// longer resolves to a live context, or the harbor send itself fails.
//
// Before routing, Send applies the sender-side flags (skynet_server.c's
// _filter_args): FlagAllocSession allocates a fresh session on the
// sender's own context, overwriting msg.Session, and FlagDontCopy skips
// the defensive clone of Payload that Send otherwise makes so the
// sender is free to keep mutating its buffer after the call returns.
// Both flags are sender-only bookkeeping — the callback that finally
// receives the message only ever sees Type/Session/Source/Payload
// (Context.Dispatch's signature has no Flags parameter), so they are
// implicitly stripped before delivery.
func (n *Node) Send(dest registry.Handle, msg message.Message) bool {
	if msg.Flags&message.FlagAllocSession != 0 {
		if src := n.Registry.Grab(registry.Handle(msg.Source)); src != nil {
			msg.Session = src.NewSession()
			src.Release()
		}
	}
	if msg.Flags&message.FlagDontCopy == 0 && msg.Payload != nil {
		cp := make([]byte, len(msg.Payload))
		copy(cp, msg.Payload)
		msg.Payload = cp
	}

	if dest.Node() != n.ID {
		if n.Harbor == nil {
			n.logger.Warn("UNDELIVERABLE_NO_HARBOR", slog.Uint64("dest", uint64(dest)))
			return false
		}
		if err := n.Harbor.Send(harbor.Envelope{Destination: uint32(dest), Msg: msg}); err != nil {
			n.logger.Warn("HARBOR_SEND_FAILED", slog.Uint64("dest", uint64(dest)), slog.Any("err", err))
			return false
		}
		return true
	}

	ctx := n.Registry.Grab(dest)
	if ctx == nil {
		n.logger.Warn("UNDELIVERABLE", slog.Uint64("dest", uint64(dest)))
		return false
	}
	ctx.Mailbox.Push(msg)
	ctx.Release()
	return true
}

// HandleExit retires handle and, if a monitor-exit target is
// configured, notifies it with a TypeSystem message carrying the
// retired handle so supervising services can react.
func (n *Node) HandleExit(handle registry.Handle) {
	_, freed := n.Registry.Retire(handle)
	if freed {
		n.live.Add(-1)
	}
	if target := n.monitorExit.Load(); target != 0 {
		n.Send(registry.Handle(target), message.Message{
			Source: uint32(handle),
			Type:   message.TypeSystem,
		})
	}
}
