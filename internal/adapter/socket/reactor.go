package socket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/webitel/actor-runtime/internal/domain/message"
)

// Deliver pushes a translated message at its owner handle — the runtime's
// Node.Send, threaded through so this package never imports internal/runtime.
type Deliver func(handle uint32, msg message.Message) bool

// Config builds the default HTTP/WebSocket socket reactor.
type Config struct {
	Addr    string // listen address, e.g. ":8901"
	Path    string // upgrade route, defaults to "/ws/{handle}"
	Deliver Deliver
}

// Reactor is the default socket reactor adapter: a chi-routed HTTP server
// upgrading connections to WebSocket via gorilla, one read pump goroutine
// per connection (the teacher's WSHandler.ServeHTTP pump loop generalized
// from per-user IM delivery to per-handle PTYPE_SOCKET events), and a
// single buffered event channel the scheduler's socket goroutine drains
// through Poll.
type Reactor struct {
	logger   *slog.Logger
	server   *http.Server
	upgrader websocket.Upgrader
	deliver  Deliver

	events chan Event

	mu     sync.Mutex
	conns  map[uint64]*websocket.Conn
	nextID atomic.Uint64
}

// New builds a reactor listening on cfg.Addr. It does not start accepting
// connections until Start is called.
func New(cfg Config, logger *slog.Logger) *Reactor {
	if cfg.Path == "" {
		cfg.Path = "/ws/{handle}"
	}

	r := &Reactor{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		deliver: cfg.Deliver,
		events:  make(chan Event, 256),
		conns:   make(map[uint64]*websocket.Conn),
	}

	mux := chi.NewRouter()
	mux.Get(cfg.Path, r.serveWS)
	r.server = &http.Server{Addr: cfg.Addr, Handler: mux}
	return r
}

// Start runs the HTTP server in the background until ctx is cancelled.
func (r *Reactor) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.server.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("SOCKET_SHUTDOWN_FAILED", slog.Any("err", err))
		}
	}()
	go func() {
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("SOCKET_LISTEN_FAILED", slog.Any("err", err))
		}
		close(r.events)
	}()
}

func (r *Reactor) serveWS(w http.ResponseWriter, req *http.Request) {
	handle, err := ownerHandle(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("SOCKET_UPGRADE_FAILED", slog.Any("err", err))
		return
	}

	id := r.nextID.Add(1)
	r.mu.Lock()
	r.conns[id] = conn
	r.mu.Unlock()

	r.logger.Info("SOCKET_OPEN", slog.Uint64("socket", id), slog.Uint64("handle", uint64(handle)))
	r.emit(Event{Kind: KindConnect, Handle: handle, connID: id})

	r.pump(req.Context(), id, handle, conn)
}

// pump reads frames off conn until the client disconnects or the request
// context is cancelled, translating each into a DATA event.
func (r *Reactor) pump(ctx context.Context, id uint64, handle uint32, conn *websocket.Conn) {
	defer r.close(id, handle, conn)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		r.emit(Event{Kind: KindData, Handle: handle, Payload: data, connID: id})
	}
}

func (r *Reactor) close(id uint64, handle uint32, conn *websocket.Conn) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
	conn.Close()
	r.emit(Event{Kind: KindClose, Handle: handle, connID: id})
}

func (r *Reactor) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("SOCKET_EVENT_DROPPED", slog.String("kind", ev.Kind.String()))
	}
}

// Write sends data out over an open connection — the reply half of the
// socket contract, called by a module's callback after it decodes a DATA
// event via DecodeMessage.
func (r *Reactor) Write(socketID uint64, data []byte) error {
	r.mu.Lock()
	conn, ok := r.conns[socketID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("socket: unknown connection %d", socketID)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Poll implements runtime.SocketReactor: it blocks for exactly one event,
// translates it into a PTYPE_SOCKET message and delivers it to its owner
// handle, and reports whether more events may still arrive.
func (r *Reactor) Poll(ctx context.Context) (bool, error) {
	select {
	case ev, ok := <-r.events:
		if !ok {
			return false, nil
		}
		msg, err := EncodeMessage(ev)
		if err != nil {
			return true, err
		}
		if r.deliver != nil {
			r.deliver(ev.Handle, msg)
		}
		return true, nil
	case <-ctx.Done():
		return false, nil
	}
}

func ownerHandle(req *http.Request) (uint32, error) {
	raw := chi.URLParam(req, "handle")
	h, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("socket: invalid handle %q: %w", raw, err)
	}
	return uint32(h), nil
}
