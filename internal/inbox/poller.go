// Package inbox keeps a mounted messaging view in sync with the marketplace.
//
// A Poller is either idle or polling one conversation. Polling runs in a
// goroutine owned by the Poller; switching conversations and unmounting both
// stop that goroutine and wait for it before returning.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/footballnetwork/portal/internal/domain"
	"github.com/footballnetwork/portal/internal/session"
	"github.com/google/uuid"
)

// DefaultInterval is the conversation refresh period.
const DefaultInterval = 7 * time.Second

// View-facing error messages.
const (
	ErrTextMessages = "Error loading messages"
	ErrTextThreads  = "Error loading conversations"
)

var (
	// ErrUnmounted is returned by operations on a poller after Unmount.
	ErrUnmounted = errors.New("inbox unmounted")
	// ErrEmptyMessage is returned by Send for blank content.
	ErrEmptyMessage = errors.New("message content is empty")
)

// Source is the slice of the marketplace API the inbox uses.
type Source interface {
	GetConversationThreads(ctx context.Context) ([]domain.Thread, error)
	GetConversation(ctx context.Context, counterpartID int64) ([]domain.Message, error)
	MarkMessageRead(ctx context.Context, messageID int64) error
	SendMessage(ctx context.Context, receiverID int64, content string) (*domain.Message, error)
}

// State is the polling state of a Poller.
type State string

const (
	StateIdle    State = "idle"
	StatePolling State = "polling"
)

// UpdateKind tells the view which part of the inbox changed.
type UpdateKind string

const (
	UpdateThreads  UpdateKind = "threads"
	UpdateMessages UpdateKind = "messages"
	UpdateError    UpdateKind = "error"
)

// Update is pushed to the view after every change.
type Update struct {
	Kind     UpdateKind       `json:"kind"`
	Threads  []domain.Thread  `json:"threads,omitempty"`
	Selected int64            `json:"selected,omitempty"`
	Messages []domain.Message `json:"messages,omitempty"`
	Err      string           `json:"error,omitempty"`
}

// Options configures a Poller.
type Options struct {
	Interval time.Duration
	// OnUpdate receives view updates. It is called from the polling goroutine
	// and must not block or call back into the Poller.
	OnUpdate func(Update)
	Logger   *slog.Logger
}

type timer struct {
	counterpartID int64
	cancel        context.CancelFunc
	done          chan struct{}
}

// Poller drives one mounted inbox view.
type Poller struct {
	id       string
	src      Source
	sessions *session.Store
	interval time.Duration
	onUpdate func(Update)
	logger   *slog.Logger

	// ctlMu serializes changes of timer ownership.
	ctlMu sync.Mutex
	timer *timer

	mu       sync.Mutex
	threads  []domain.Thread
	selected int64
	messages []domain.Message
	closed   bool

	running atomic.Int32
}

// New creates an idle poller. Call Mount to start it.
func New(src Source, sessions *session.Store, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	id := uuid.NewString()
	return &Poller{
		id:       id,
		src:      src,
		sessions: sessions,
		interval: opts.Interval,
		onUpdate: opts.OnUpdate,
		logger:   opts.Logger.With("poller_id", id),
	}
}

// ID returns the poller's identifier.
func (p *Poller) ID() string { return p.id }

// State reports whether a conversation is being polled.
func (p *Poller) State() State {
	p.ctlMu.Lock()
	defer p.ctlMu.Unlock()
	if p.timer == nil {
		return StateIdle
	}
	return StatePolling
}

// Selected returns the counterpart of the selected conversation, or 0.
func (p *Poller) Selected() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// Threads returns a copy of the loaded thread list.
func (p *Poller) Threads() []domain.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Thread(nil), p.threads...)
}

// Mount loads the thread list and starts polling the first conversation.
func (p *Poller) Mount(ctx context.Context) error {
	if err := p.ReloadThreads(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	var first int64
	if p.selected == 0 && len(p.threads) > 0 {
		first = p.threads[0].CounterpartID
	}
	p.mu.Unlock()

	if first != 0 {
		return p.Select(first)
	}
	return nil
}

// Select switches the polled conversation. The previous timer is stopped
// before the new one starts. Selecting 0 returns the poller to idle.
func (p *Poller) Select(counterpartID int64) error {
	p.ctlMu.Lock()
	defer p.ctlMu.Unlock()

	if p.isClosed() {
		return ErrUnmounted
	}

	p.stopLocked()

	p.mu.Lock()
	if p.selected != counterpartID {
		p.messages = nil
	}
	p.selected = counterpartID
	p.mu.Unlock()

	if counterpartID == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &timer{counterpartID: counterpartID, cancel: cancel, done: make(chan struct{})}
	p.timer = t
	p.running.Add(1)
	go p.run(ctx, t)

	p.logger.Debug("Polling conversation", "counterpart_id", counterpartID, "interval", p.interval)
	return nil
}

// Unmount stops polling. No fetch starts after Unmount returns.
func (p *Poller) Unmount() {
	p.ctlMu.Lock()
	defer p.ctlMu.Unlock()

	p.mu.Lock()
	alreadyClosed := p.closed
	p.closed = true
	p.mu.Unlock()

	p.stopLocked()
	if !alreadyClosed {
		p.logger.Debug("Inbox unmounted")
	}
}

// stopLocked cancels the current timer and waits for its goroutine.
// The caller holds ctlMu.
func (p *Poller) stopLocked() {
	t := p.timer
	if t == nil {
		return
	}
	p.timer = nil
	t.cancel()
	<-t.done
}

func (p *Poller) run(ctx context.Context, t *timer) {
	defer close(t.done)
	defer p.running.Add(-1)

	p.fetch(ctx, t.counterpartID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetch(ctx, t.counterpartID)
		}
	}
}

// fetch loads one conversation and marks the current user's unread messages.
func (p *Poller) fetch(ctx context.Context, counterpartID int64) {
	if ctx.Err() != nil {
		return
	}
	gen := p.sessions.Generation()

	msgs, err := p.src.GetConversation(ctx, counterpartID)
	if ctx.Err() != nil {
		return
	}
	if snap := p.sessions.Snapshot(); snap.Generation != gen || !snap.Authenticated() {
		p.logger.Debug("Discarding conversation for signed-out session", "counterpart_id", counterpartID)
		return
	}
	if err != nil {
		p.logger.Warn("Failed to load conversation", "counterpart_id", counterpartID, "error", err)
		p.emit(Update{Kind: UpdateError, Selected: counterpartID, Err: ErrTextMessages})
		return
	}

	p.mu.Lock()
	p.messages = append([]domain.Message(nil), msgs...)
	p.mu.Unlock()
	p.emit(Update{Kind: UpdateMessages, Selected: counterpartID, Messages: msgs})

	if p.markRead(ctx, gen, msgs) > 0 {
		_ = p.ReloadThreads(ctx)
	}
}

// markRead marks the messages addressed to the current user as read and
// returns how many calls succeeded. Failures are logged and skipped.
func (p *Poller) markRead(ctx context.Context, gen uint64, msgs []domain.Message) int {
	snap := p.sessions.Snapshot()
	if snap.Generation != gen || !snap.Authenticated() {
		return 0
	}

	marked := 0
	for _, m := range domain.UnreadFor(msgs, snap.Profile.ID) {
		if ctx.Err() != nil {
			break
		}
		if err := p.src.MarkMessageRead(ctx, m.ID); err != nil {
			p.logger.Debug("Failed to mark message read", "message_id", m.ID, "error", err)
			continue
		}
		marked++
	}
	return marked
}

// ReloadThreads refreshes the thread list and pushes the unread total into the
// session. The total is discarded when the session changed during the request.
func (p *Poller) ReloadThreads(ctx context.Context) error {
	if p.isClosed() {
		return ErrUnmounted
	}
	gen := p.sessions.Generation()

	threads, err := p.src.GetConversationThreads(ctx)
	if err != nil {
		p.logger.Warn("Failed to load conversation threads", "error", err)
		p.emit(Update{Kind: UpdateError, Err: ErrTextThreads})
		return fmt.Errorf("load threads: %w", err)
	}

	total := domain.TotalUnread(threads)
	if !p.sessions.SetUnreadCount(gen, total) {
		p.logger.Debug("Discarding unread count for superseded session", "unread", total)
		return nil
	}

	p.mu.Lock()
	p.threads = append([]domain.Thread(nil), threads...)
	selected := p.selected
	p.mu.Unlock()

	p.emit(Update{Kind: UpdateThreads, Threads: threads, Selected: selected})
	return nil
}

// Send delivers a message, appends it to the open conversation, reloads the
// thread list and switches to the receiver's conversation.
func (p *Poller) Send(ctx context.Context, receiverID int64, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if p.isClosed() {
		return nil, ErrUnmounted
	}

	msg, err := p.src.SendMessage(ctx, receiverID, content)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	p.mu.Lock()
	var history []domain.Message
	if p.selected == receiverID {
		p.messages = append(p.messages, *msg)
		history = append(history, p.messages...)
	}
	p.mu.Unlock()
	if history != nil {
		p.emit(Update{Kind: UpdateMessages, Selected: receiverID, Messages: history})
	}

	if err := p.ReloadThreads(ctx); err != nil && !errors.Is(err, ErrUnmounted) {
		p.logger.Warn("Thread reload after send failed", "error", err)
	}

	if p.Selected() != receiverID {
		if err := p.Select(receiverID); err != nil && !errors.Is(err, ErrUnmounted) {
			return msg, err
		}
	}
	return msg, nil
}

// RemoveThread drops a thread from the local list. Removing the selected
// thread stops polling.
func (p *Poller) RemoveThread(counterpartID int64) {
	p.mu.Lock()
	kept := p.threads[:0:0]
	for _, t := range p.threads {
		if t.CounterpartID != counterpartID {
			kept = append(kept, t)
		}
	}
	p.threads = kept
	wasSelected := p.selected == counterpartID
	p.mu.Unlock()

	if wasSelected {
		_ = p.Select(0)
	}
	p.emit(Update{Kind: UpdateThreads, Threads: kept, Selected: p.Selected()})
}

func (p *Poller) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Poller) emit(u Update) {
	if p.onUpdate == nil || p.isClosed() {
		return
	}
	p.onUpdate(u)
}

func (p *Poller) activeTimers() int {
	return int(p.running.Load())
}
