// Package mailbox implements the per-service message queue: a growable
// ring buffer guarded by a short critical section, plus the in-global
// state machine that decides whether the mailbox is sitting on the
// scheduler's run-queue.
//
// The implementation mirrors skynet_mq.c's message_queue: a mutex stands
// in for the original's test-and-set spinlock (the critical sections here
// are a couple of load/store pairs, short enough that a platform mutex is
// the right call — see spec.md §9).
package mailbox

import (
	"sync"

	"github.com/webitel/actor-runtime/internal/domain/message"
)

// State is the mailbox's position with respect to the global run-queue.
type State int

const (
	// Out: the mailbox holds no runnable work and is not queued.
	Out State = iota
	// In: the mailbox is sitting on the global run-queue.
	In
	// Dispatching: a worker is between Lock and Unlock for a response
	// session; the mailbox is not on the run-queue right now.
	Dispatching
	// Locked: the mailbox was Dispatching and accumulated enough work
	// that it must be re-enqueued as soon as Unlock runs.
	Locked
)

const defaultCapacity = 64

// Pusher is the subset of the global run-queue (runqueue.RunQueue) the
// mailbox needs to re-enqueue itself. Kept minimal to avoid an import
// cycle with runqueue.
type Pusher interface {
	PushGlobal(m *Mailbox)
}

// Mailbox is a single service's FIFO, plus the bookkeeping the scheduler
// needs to know whether the mailbox is currently runnable.
type Mailbox struct {
	mu sync.Mutex

	handle uint32
	queue  []message.Message
	head   int
	tail   int

	state       State
	lockSession int32
	release     bool

	runq Pusher
}

// New allocates a mailbox for handle with the default initial capacity and
// marks it runnable immediately, mirroring skynet_mq_create's
// in_global = MQ_IN_GLOBAL (the bootstrap message must be able to schedule
// it before anything else is pushed).
func New(handle uint32, runq Pusher) *Mailbox {
	return &Mailbox{
		handle: handle,
		queue:  make([]message.Message, defaultCapacity),
		state:  In,
		runq:   runq,
	}
}

// Handle returns the owning service's handle.
func (m *Mailbox) Handle() uint32 {
	return m.handle
}

// Push appends a message. If a response-lock session is active and msg's
// session matches it, the message jumps to the head of the queue instead
// (skynet_mq.c's _pushhead). Otherwise it is appended at the tail, growing
// the backing array ×2 on overflow. A mailbox with no lock session that
// was Out transitions to In and is handed to the scheduler's run-queue.
func (m *Mailbox) Push(msg message.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lockSession != 0 && msg.Session == m.lockSession {
		m.pushHead(msg)
		return
	}

	m.queue[m.tail] = msg
	m.tail++
	if m.tail >= len(m.queue) {
		m.tail = 0
	}
	if m.head == m.tail {
		m.expand()
	}

	if m.lockSession == 0 && m.state == Out {
		m.state = In
		m.runq.PushGlobal(m)
	}
}

// pushHead inserts msg immediately before the current head and re-enqueues
// the mailbox globally if it had been parked as Locked while dispatching.
func (m *Mailbox) pushHead(msg message.Message) {
	head := m.head - 1
	if head < 0 {
		head = len(m.queue) - 1
	}
	if head == m.tail {
		m.expand()
		m.tail--
		if m.tail < 0 {
			m.tail = len(m.queue) - 1
		}
		head = len(m.queue) - 1
	}
	m.queue[head] = msg
	m.head = head
	m.unlockLocked()
}

// expand doubles the backing array, linearizing the ring starting at head.
func (m *Mailbox) expand() {
	next := make([]message.Message, len(m.queue)*2)
	n := copy(next, m.queue[m.head:])
	copy(next[n:], m.queue[:m.head])
	m.head = 0
	m.tail = len(m.queue)
	m.queue = next
}

// Pop removes and returns the head message. ok is false if the mailbox was
// empty; in that case the mailbox transitions to Out.
func (m *Mailbox) Pop() (msg message.Message, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.head == m.tail {
		m.state = Out
		return message.Message{}, false
	}

	msg = m.queue[m.head]
	m.queue[m.head] = message.Message{}
	m.head++
	if m.head >= len(m.queue) {
		m.head = 0
	}
	return msg, true
}

// Length reports the current message count (the MQLEN command).
func (m *Mailbox) Length() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.length()
}

func (m *Mailbox) length() int {
	if m.head <= m.tail {
		return m.tail - m.head
	}
	return m.tail + len(m.queue) - m.head
}

// Lock puts the mailbox into response-locked dispatch mode: future pushes
// whose session matches session jump the queue; everything else still
// appends at the tail but does not cause a re-enqueue on the run-queue.
// Precondition: no lock session is active and the mailbox is currently In.
func (m *Mailbox) Lock(session int32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lockSession != 0 || m.state != In {
		return
	}
	m.state = Dispatching
	m.lockSession = session
}

// Unlock releases the response lock. If the mailbox accumulated work while
// dispatching (state became Locked), it is re-enqueued globally.
func (m *Mailbox) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlockLocked()
}

func (m *Mailbox) unlockLocked() {
	if m.state == Locked {
		m.state = In
		m.runq.PushGlobal(m)
	}
	m.lockSession = 0
}

// MarkRelease flags the mailbox for drainage on its next worker encounter
// and ensures it will be observed once more even if currently empty.
func (m *Mailbox) MarkRelease() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release = true
	m.runq.PushGlobal(m)
}

// Release drains and frees all pending messages if MarkRelease was called;
// otherwise it forces the mailbox back onto the run-queue. Returns true if
// the mailbox was drained (and may now be discarded by the caller).
func (m *Mailbox) Release() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.release {
		m.runq.PushGlobal(m)
		return false
	}

	for m.head != m.tail {
		m.queue[m.head] = message.Message{}
		m.head++
		if m.head >= len(m.queue) {
			m.head = 0
		}
	}
	return true
}

// InGlobal reports whether the mailbox currently believes it is queued on
// the global run-queue (State == In).
func (m *Mailbox) InGlobal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == In
}

// Requeue is the scheduler's per-dispatch-cycle housekeeping: called once
// after a worker pops and handles a single message. If the mailbox is
// Dispatching (a LOCK is in effect) and more work arrived while locked, it
// is parked as Locked so Unlock re-enqueues it later instead of doing so
// now. Otherwise it is re-enqueued if non-empty, or marked Out if drained.
func (m *Mailbox) Requeue() {
	m.mu.Lock()
	defer m.mu.Unlock()

	nonEmpty := m.head != m.tail
	if m.state == Dispatching {
		if nonEmpty {
			m.state = Locked
		}
		return
	}
	if nonEmpty {
		m.state = In
		m.runq.PushGlobal(m)
	} else {
		m.state = Out
	}
}
