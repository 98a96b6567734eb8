package runtime

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/webitel/actor-runtime/internal/adapter/harbor"
	"github.com/webitel/actor-runtime/internal/domain/env"
	"github.com/webitel/actor-runtime/internal/domain/modhost"
	"github.com/webitel/actor-runtime/internal/domain/registry"
	"github.com/webitel/actor-runtime/internal/domain/runqueue"
	"github.com/webitel/actor-runtime/internal/domain/timer"
	"github.com/webitel/actor-runtime/internal/domain/watchdog"
)

// Config carries the node-level settings the runtime module needs that
// package config otherwise owns, kept here to avoid an app→domain
// import cycle.
type Config struct {
	NodeID  uint8
	Workers int
}

// DefaultConfig is used when no Config is supplied to the graph (tests,
// or a caller that only needs the domain wiring).
var DefaultConfig = Config{NodeID: 1, Workers: 8}

// newNode builds a fully wired Node: registry, run-queue, modules, env,
// plus a timer wheel and watchdog that close their reference back to
// the node itself (the wheel delivers expiries via Node.Deliver, the
// watchdog flags stuck services via Node.MarkEndless).
func newNode(cfg Config, reg *registry.Registry, rq *runqueue.RunQueue, modules *modhost.Registry, envStore *env.Store, logger *slog.Logger) *Node {
	node := New(cfg.NodeID, reg, rq, modules, envStore, logger)
	node.Watchdog = watchdog.New(cfg.Workers, node)
	node.Wheel = timer.New(node, 0, uint32(time.Now().Unix()))
	return node
}

// schedulerParams lets harbor.Transport and the socket reactor stay
// optional: a --standalone run with no socket adapter configured still
// gets a working scheduler, just with a no-op socket goroutine.
type schedulerParams struct {
	fx.In

	LC         fx.Lifecycle
	Cfg        Config
	Node       *Node
	Logger     *slog.Logger
	Shutdowner fx.Shutdowner
	Reactor    SocketReactor    `optional:"true"`
	Transport  harbor.Transport `optional:"true"`
}

// SchedulerHolder exposes the running Scheduler for things like
// internal/admin's dashboard that need to poll its Snapshot.
type SchedulerHolder struct {
	Scheduler *Scheduler
}

// Module provides the Node and starts/stops its Scheduler on the fx
// lifecycle, the same OnStart/OnStop goroutine pattern the teacher uses
// for its watermill router (internal/handler/amqp/module.go).
var Module = fx.Module("runtime",
	fx.Provide(newNode),
	fx.Provide(func() *SchedulerHolder { return &SchedulerHolder{} }),
	fx.Invoke(func(p schedulerParams, holder *SchedulerHolder) error {
		if p.Transport != nil {
			p.Node.Harbor = p.Transport
		}

		sched := NewScheduler(p.Node, p.Cfg.Workers, p.Reactor, p.Logger)
		holder.Scheduler = sched
		runCtx, cancel := context.WithCancel(context.Background())

		p.LC.Append(fx.Hook{
			OnStart: func(context.Context) error {
				if p.Transport != nil {
					go pumpHarbor(runCtx, p.Node, p.Transport, p.Logger)
				}
				go func() {
					if err := sched.Run(runCtx); err != nil {
						p.Logger.Error("SCHEDULER_STOPPED", slog.Any("err", err))
					}
					_ = p.Shutdowner.Shutdown()
				}()
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				return nil
			},
		})
		return nil
	}),
)

// pumpHarbor delivers inbound inter-node envelopes to their destination
// handle's mailbox, the receive half of the harbor transport (the send
// half is any service calling Node.Send on a remote handle, which the
// node routes out via Harbor itself — see Node.Send).
func pumpHarbor(ctx context.Context, node *Node, transport harbor.Transport, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-transport.Recv():
			if !ok {
				return
			}
			if registry.Handle(env.Destination).Node() != node.ID {
				continue // addressed to another node sharing the harbor topic
			}
			if !node.Send(registry.Handle(env.Destination), env.Msg) {
				logger.Warn("HARBOR_DELIVERY_FAILED", slog.Uint64("destination", uint64(env.Destination)))
			}
		}
	}
}
