package runtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/webitel/actor-runtime/internal/domain/mailbox"
	"github.com/webitel/actor-runtime/internal/domain/registry"
	"github.com/webitel/actor-runtime/internal/domain/timer"
)

// timerTick is the timer goroutine's wake-up period. The wheel's own
// Tick granularity is 10ms (timer.Tick); skynet_start.c's timer thread
// samples faster than that (2.5ms) so a tick boundary is never missed
// by more than a quarter of its own width.
const timerTick = 2500 * time.Microsecond

// monitorSweep is how often the watchdog check runs (spec.md §4.7).
const monitorSweep = 5 * time.Second

// SocketReactor is the external socket-event source (internal/adapter/socket
// implements this). Poll blocks until at least one event is ready or ctx is
// done, and returns false once the reactor itself has shut down.
type SocketReactor interface {
	Poll(ctx context.Context) (more bool, err error)
}

// Scheduler runs the worker pool plus the timer, socket, and monitor
// goroutines described in spec.md §4.4.
type Scheduler struct {
	node    *Node
	workers int
	reactor SocketReactor
	logger  *slog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	sleeping int
	busy     atomic.Int64
	quit     atomic.Bool
}

// NewScheduler builds a scheduler for node with the given worker count.
// reactor may be nil (no socket events are polled; the socket goroutine
// becomes a no-op).
func NewScheduler(node *Node, workers int, reactor SocketReactor, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		node:    node,
		workers: workers,
		reactor: reactor,
		logger:  logger,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Run starts every goroutine and blocks until ctx is cancelled or the
// live-service count reaches zero (CHECK_ABORT), then waits for clean
// shutdown of all of them, aggregating any errors.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	var errs *multierror.Error
	var mu sync.Mutex

	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = multierror.Append(errs, err)
		mu.Unlock()
	}

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.timerLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		record(s.socketLoop(ctx))
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.monitorLoop(ctx)
	}()

	wg.Wait()
	return errs.ErrorOrNil()
}

// shouldStop is the CHECK_ABORT condition: cancellation requested, or no
// services remain registered.
func (s *Scheduler) shouldStop(ctx context.Context) bool {
	if s.quit.Load() {
		return true
	}
	select {
	case <-ctx.Done():
		s.requestStop()
		return true
	default:
	}
	if s.node.LiveCount() == 0 {
		s.requestStop()
		return true
	}
	return false
}

// requestStop flips the quit flag and wakes every sleeping worker so
// they can observe it (skynet_start.c's cond_broadcast on abort).
func (s *Scheduler) requestStop() {
	if s.quit.CompareAndSwap(false, true) {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	for {
		if s.shouldStop(ctx) {
			return
		}
		mb := s.node.RunQueue.Pop()
		if mb == nil {
			s.sleep()
			continue
		}
		s.dispatchOne(id, mb)
	}
}

func (s *Scheduler) sleep() {
	s.mu.Lock()
	if s.quit.Load() {
		s.mu.Unlock()
		return
	}
	s.sleeping++
	s.cond.Wait()
	s.sleeping--
	s.mu.Unlock()
}

// wake signals one sleeping worker, but only under the policy spec.md
// §4.4 describes: cond_signal is worthwhile only when there are at
// least as many sleepers as idle (non-busy) workers warrant.
func (s *Scheduler) wake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sleeping <= 0 {
		return
	}
	idle := int64(s.workers) - s.busy.Load()
	if int64(s.sleeping) >= idle {
		s.cond.Signal()
	}
}

// dispatchOne grabs the mailbox's owning context, pops one message, runs
// it through the owner's callback while the watchdog slot is armed, then
// requeues the mailbox and releases the context — spec.md §4.4's worker
// loop body.
func (s *Scheduler) dispatchOne(workerID int, mb *mailbox.Mailbox) {
	ctx := s.node.Registry.Grab(registry.Handle(mb.Handle()))
	if ctx == nil {
		return
	}
	defer ctx.Release()

	msg, ok := mb.Pop()
	if !ok {
		return
	}

	slot := s.node.Watchdog.Slot(workerID)
	s.busy.Add(1)
	slot.Trigger(msg.Source, mb.Handle())

	ctx.Dispatch(msg.Type, msg.Session, msg.Source, msg.Payload)

	slot.Trigger(0, 0)
	s.busy.Add(-1)

	mb.Requeue()
}

func (s *Scheduler) timerLoop(ctx context.Context) {
	// The wheel's clock sample: ticks elapsed on the monotonic clock since
	// this loop started, offset from the wheel's current tick and wrapped
	// at the wheel's sample range (a 24-bit second counter x 100).
	const tickWrap = (0xffffff + 1) * 100
	start := time.Now()
	base := uint64(s.node.Wheel.Now())

	ticker := time.NewTicker(timerTick)
	defer ticker.Stop()
	for {
		if s.shouldStop(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			s.requestStop()
			return
		case now := <-ticker.C:
			elapsed := uint64(now.Sub(start) / timer.Tick)
			s.node.Wheel.Advance(uint32((base + elapsed) % tickWrap))
			s.wake()
		}
	}
}

func (s *Scheduler) socketLoop(ctx context.Context) error {
	if s.reactor == nil {
		<-ctx.Done()
		return nil
	}
	for {
		if s.shouldStop(ctx) {
			return nil
		}
		more, err := s.reactor.Poll(ctx)
		if err != nil {
			s.logger.Error("SOCKET_POLL_ERROR", slog.Any("err", err))
			return err
		}
		s.wake()
		if !more {
			return nil
		}
	}
}

// Snapshot is a point-in-time read of the scheduler's counters — what the
// admin dashboard polls.
type Snapshot struct {
	Workers       int
	Busy          int64
	Sleeping      int
	LiveServices  int64
	RunQueueDepth int
}

// Snapshot reads the scheduler's current counters. Safe to call
// concurrently with Run.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	sleeping := s.sleeping
	s.mu.Unlock()
	return Snapshot{
		Workers:       s.workers,
		Busy:          s.busy.Load(),
		Sleeping:      sleeping,
		LiveServices:  s.node.LiveCount(),
		RunQueueDepth: s.node.RunQueue.Depth(),
	}
}

func (s *Scheduler) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(monitorSweep)
	defer ticker.Stop()
	for {
		if s.shouldStop(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			s.requestStop()
			return
		case <-ticker.C:
			s.node.Watchdog.Check()
		}
	}
}

