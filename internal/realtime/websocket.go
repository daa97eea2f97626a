package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/footballnetwork/portal/internal/identity"
	"github.com/footballnetwork/portal/internal/inbox"
	"github.com/footballnetwork/portal/internal/router"
	"github.com/footballnetwork/portal/internal/session"
)

const (
	sendQueueSize = 64
	writeTimeout  = 10 * time.Second
)

// Message types sent by the view.
const (
	TypeInboxOpen   = "inbox.open"
	TypeInboxSelect = "inbox.select"
	TypeInboxClose  = "inbox.close"
	TypeInboxSend   = "inbox.send"
	TypeInboxRemove = "inbox.remove"
	TypePing        = "ping"
)

// Message types pushed to the view.
const (
	TypeSession       = "session"
	TypeInboxThreads  = "inbox.threads"
	TypeInboxMessages = "inbox.messages"
	TypeInboxError    = "inbox.error"
	TypePong          = "pong"
)

// Options configures the WebSocket handler.
type Options struct {
	PollInterval  time.Duration
	AllowedOrigin string
	IsDev         bool
	Logger        *slog.Logger
}

// WebSocketHandler serves /ws. Each connection is one mounted view.
type WebSocketHandler struct {
	sessions *session.Store
	src      inbox.Source
	hub      *Hub
	opts     Options
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(sessions *session.Store, src inbox.Source, hub *Hub, opts Options) *WebSocketHandler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		sessions: sessions,
		src:      src,
		hub:      hub,
		opts:     opts,
		logger:   logger,
	}
}

// clientMessage is a message from the view.
type clientMessage struct {
	Type          string `json:"type"`
	CounterpartID int64  `json:"counterpart_id,omitempty"`
	Content       string `json:"content,omitempty"`
}

// serverMessage is a message to the view.
type serverMessage struct {
	Type     string            `json:"type"`
	Session  *session.Snapshot `json:"session,omitempty"`
	Decision *router.Decision  `json:"decision,omitempty"`
	Inbox    *inbox.Update     `json:"inbox,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	viewID := identity.ViewIDFromContext(r.Context())
	h.logger.Info("WebSocket connection request", "view_id", viewID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "view_id", viewID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "view unmounted"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "view_id", viewID)
		}
	}()

	h.hub.Register(viewID, ws)
	defer h.hub.Unregister(viewID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	v := &view{
		h:       h,
		id:      viewID,
		nav:     router.NewNavigator(),
		send:    make(chan []byte, sendQueueSize),
		changed: make(chan struct{}, 1),
		logger:  h.logger.With("view_id", viewID),
	}
	defer v.closeInbox()

	unsubscribe := h.sessions.Subscribe(v.onSession)
	defer unsubscribe()
	v.onSession(h.sessions.Snapshot())

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		defer cancel()
		v.writeLoop(ctx, ws)
	}()

	go func() {
		defer wg.Done()
		v.watchSession(ctx)
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		v.readLoop(ctx, ws)
	}()

	wg.Wait()
	h.logger.Info("View session ended", "view_id", viewID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.opts.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.opts.AllowedOrigin == "*" {
		return true
	}
	if origin == h.opts.AllowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.opts.AllowedOrigin)
	return false
}

// view is the server side of one mounted front-end view.
type view struct {
	h      *WebSocketHandler
	id     string
	nav    *router.Navigator
	logger *slog.Logger

	send    chan []byte
	changed chan struct{}

	mu     sync.Mutex
	poller *inbox.Poller
}

// onSession runs inside the session store's notification path. It only
// enqueues; anything that can block or touch the store happens in watchSession.
func (v *view) onSession(snap session.Snapshot) {
	decision := v.nav.Evaluate(snap)
	v.enqueue(serverMessage{Type: TypeSession, Session: &snap, Decision: &decision})

	select {
	case v.changed <- struct{}{}:
	default:
	}
}

// watchSession unmounts the inbox once the session is no longer authenticated.
func (v *view) watchSession(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.changed:
			if !v.h.sessions.Snapshot().Authenticated() {
				v.closeInbox()
			}
		}
	}
}

func (v *view) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				v.logger.Debug("WebSocket closed by client")
			} else if ctx.Err() == nil {
				v.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			v.enqueue(serverMessage{Type: TypeInboxError, Error: "invalid message"})
			continue
		}
		v.handle(ctx, msg)
	}
}

func (v *view) handle(ctx context.Context, msg clientMessage) {
	switch msg.Type {
	case TypePing:
		v.enqueue(serverMessage{Type: TypePong})
	case TypeInboxOpen:
		v.openInbox(ctx)
	case TypeInboxClose:
		v.closeInbox()
	case TypeInboxSelect:
		if p := v.currentPoller(); p != nil {
			if err := p.Select(msg.CounterpartID); err != nil {
				v.logger.Debug("Select ignored", "error", err)
			}
		}
	case TypeInboxRemove:
		if p := v.currentPoller(); p != nil {
			p.RemoveThread(msg.CounterpartID)
		}
	case TypeInboxSend:
		p := v.currentPoller()
		if p == nil {
			v.enqueue(serverMessage{Type: TypeInboxError, Error: "inbox is not open"})
			return
		}
		if _, err := p.Send(ctx, msg.CounterpartID, msg.Content); err != nil {
			v.logger.Warn("Send failed", "receiver_id", msg.CounterpartID, "error", err)
			text := "Error sending message"
			if errors.Is(err, inbox.ErrEmptyMessage) {
				text = err.Error()
			}
			v.enqueue(serverMessage{Type: TypeInboxError, Error: text})
		}
	default:
		v.logger.Debug("Unknown message type", "type", msg.Type)
	}
}

func (v *view) openInbox(ctx context.Context) {
	if !v.h.sessions.Snapshot().Authenticated() {
		v.enqueue(serverMessage{Type: TypeInboxError, Error: "authentication required"})
		return
	}

	v.closeInbox()
	p := inbox.New(v.h.src, v.h.sessions, inbox.Options{
		Interval: v.h.opts.PollInterval,
		OnUpdate: v.onInbox,
		Logger:   v.logger,
	})

	v.mu.Lock()
	v.poller = p
	v.mu.Unlock()

	// A sign-out between the check above and storing the poller would
	// otherwise leave it running.
	if !v.h.sessions.Snapshot().Authenticated() {
		v.closeInbox()
		return
	}

	if err := p.Mount(ctx); err != nil {
		v.logger.Warn("Inbox mount failed", "error", err)
	}
}

func (v *view) closeInbox() {
	v.mu.Lock()
	p := v.poller
	v.poller = nil
	v.mu.Unlock()

	if p != nil {
		p.Unmount()
	}
}

func (v *view) currentPoller() *inbox.Poller {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.poller
}

func (v *view) onInbox(u inbox.Update) {
	msgType := TypeInboxThreads
	switch u.Kind {
	case inbox.UpdateMessages:
		msgType = TypeInboxMessages
	case inbox.UpdateError:
		msgType = TypeInboxError
	}
	v.enqueue(serverMessage{Type: msgType, Inbox: &u, Error: u.Err})
}

// enqueue queues msg without blocking. When the queue is full the oldest
// message is dropped; session and inbox messages carry full state, so the
// newest one supersedes what was dropped.
func (v *view) enqueue(msg serverMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		v.logger.Error("Failed to encode message", "type", msg.Type, "error", err)
		return
	}

	select {
	case v.send <- data:
		return
	default:
	}

	v.logger.Warn("Send queue full, dropping oldest message", "queue_len", len(v.send))
	select {
	case <-v.send:
	default:
	}
	select {
	case v.send <- data:
	default:
		v.logger.Warn("Failed to queue message after backpressure", "type", msg.Type)
	}
}

func (v *view) writeLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-v.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					v.logger.Debug("WebSocket write error", "error", err)
				}
				return
			}
		}
	}
}
