// Package notify queues flash notifications and pending confirmations per
// browser session until the next page or partial renders them.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/secretaria/internal/table"
)

// Default display durations.
const (
	DefaultDuration = 5 * time.Second
	ErrorDuration   = 8 * time.Second

	// DefaultConfirmTTL bounds how long a confirmation waits for an answer.
	DefaultConfirmTTL = 10 * time.Minute

	// maxQueued caps undrained notifications per session.
	maxQueued = 20
)

// ErrUnknownConfirmation is returned when resolving a confirmation that
// does not exist, already ran, expired, or belongs to another session.
var ErrUnknownConfirmation = errors.New("unknown confirmation")

// Kind is the severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// Notification is one flash message.
type Notification struct {
	ID        string
	Kind      Kind
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
}

// Confirmation is a question waiting for the user's answer.
type Confirmation struct {
	ID        string
	SessionID string
	Message   string
	CreatedAt time.Time
}

type pending struct {
	Confirmation
	onConfirm func(context.Context)
	onCancel  func(context.Context)
}

// Notifier holds notifications and confirmations for every session.
type Notifier struct {
	mu      sync.Mutex
	queues  map[string][]Notification
	pending map[string]*pending
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

var _ table.Confirmer = (*Notifier)(nil)

// Option configures a Notifier.
type Option func(*Notifier)

// WithConfirmTTL sets how long confirmations stay answerable.
func WithConfirmTTL(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.ttl = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// WithLogger sets the notifier's logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// New returns an empty notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		queues:  make(map[string][]Notification),
		pending: make(map[string]*pending),
		ttl:     DefaultConfirmTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Success queues a success message.
func (n *Notifier) Success(sessionID, message string) {
	n.Notify(sessionID, KindSuccess, message, DefaultDuration)
}

// Error queues an error message, shown longer than the others.
func (n *Notifier) Error(sessionID, message string) {
	n.Notify(sessionID, KindError, message, ErrorDuration)
}

// Warning queues a warning.
func (n *Notifier) Warning(sessionID, message string) {
	n.Notify(sessionID, KindWarning, message, DefaultDuration)
}

// Info queues an informational message.
func (n *Notifier) Info(sessionID, message string) {
	n.Notify(sessionID, KindInfo, message, DefaultDuration)
}

// Notify queues a message of the given kind. A non-positive d selects the
// default for kind. Messages for an empty session id are dropped.
func (n *Notifier) Notify(sessionID string, kind Kind, message string, d time.Duration) {
	if sessionID == "" {
		n.logger.Debug("notification without session dropped", "kind", kind)
		return
	}
	if d <= 0 {
		d = DefaultDuration
		if kind == KindError {
			d = ErrorDuration
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	q := append(n.queues[sessionID], Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		Duration:  d,
		CreatedAt: n.now(),
	})
	if len(q) > maxQueued {
		q = q[len(q)-maxQueued:]
	}
	n.queues[sessionID] = q
}

// Drain returns and clears the queued notifications of a session.
func (n *Notifier) Drain(sessionID string) []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	q := n.queues[sessionID]
	delete(n.queues, sessionID)
	return q
}

// Confirm asks the session found in ctx to confirm message. It satisfies
// table.Confirmer. Without a session in ctx, onCancel runs immediately.
func (n *Notifier) Confirm(ctx context.Context, message string, onConfirm, onCancel func(context.Context)) {
	sessionID := SessionFrom(ctx)
	if sessionID == "" {
		n.logger.WarnContext(ctx, "confirmation without session cancelled")
		if onCancel != nil {
			onCancel(ctx)
		}
		return
	}
	n.ConfirmFor(sessionID, message, onConfirm, onCancel)
}

// ConfirmFor registers a confirmation for sessionID and returns its id.
func (n *Notifier) ConfirmFor(sessionID, message string, onConfirm, onCancel func(context.Context)) string {
	p := &pending{
		Confirmation: Confirmation{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Message:   message,
			CreatedAt: n.now(),
		},
		onConfirm: onConfirm,
		onCancel:  onCancel,
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.sweepLocked()
	n.pending[p.ID] = p
	return p.ID
}

// Pending lists the open confirmations of a session, oldest first.
func (n *Notifier) Pending(sessionID string) []Confirmation {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sweepLocked()

	var out []Confirmation
	for _, p := range n.pending {
		if p.SessionID == sessionID {
			out = append(out, p.Confirmation)
		}
	}
	slices.SortStableFunc(out, func(a, b Confirmation) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// Resolve answers confirmation id on behalf of the session in ctx. Exactly
// one of the callbacks runs, and only the first answer counts.
func (n *Notifier) Resolve(ctx context.Context, id string, confirmed bool) error {
	sessionID := SessionFrom(ctx)

	n.mu.Lock()
	n.sweepLocked()
	p, ok := n.pending[id]
	if !ok || p.SessionID != sessionID {
		n.mu.Unlock()
		return ErrUnknownConfirmation
	}
	delete(n.pending, id)
	n.mu.Unlock()

	fn := p.onCancel
	if confirmed {
		fn = p.onConfirm
	}
	if fn != nil {
		fn(ctx)
	}
	return nil
}

// sweepLocked drops expired confirmations. Their callbacks never run.
func (n *Notifier) sweepLocked() {
	cutoff := n.now().Add(-n.ttl)
	for id, p := range n.pending {
		if p.CreatedAt.Before(cutoff) {
			delete(n.pending, id)
		}
	}
}

// Forget discards everything queued for a session.
func (n *Notifier) Forget(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.queues, sessionID)
	for id, p := range n.pending {
		if p.SessionID == sessionID {
			delete(n.pending, id)
		}
	}
}

type sessionKey struct{}

// WithSession returns a copy of ctx naming the session notifications go to.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFrom returns the session id stored by WithSession, or "".
func SessionFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
