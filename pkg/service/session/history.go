package session

import (
	"context"
	"sync"
	"time"

	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/ilora-retreats/concierge/pkg/utils/logging"
)

const (
	defaultRecentLimit = 10
	defaultSaveEvery   = 5
)

// Persister writes a session's chat history to durable storage.
type Persister interface {
	SaveHistory(ctx context.Context, sessionKey string, messages []model.ChatMessage) error
}

// History is the per-session conversation log. The in-memory log grows
// without bound; Recent exposes only the newest window. Every saveEvery
// appended messages the full log for that session is handed to the persister;
// persistence failures are logged and swallowed. All mutation goes through
// one process-wide lock, which is fine at human typing speed.
type History struct {
	mu    sync.Mutex
	logs  map[string][]model.ChatMessage
	clock func() time.Time

	recentLimit int
	saveEvery   int
	persister   Persister
}

type HistoryOption func(*History)

// WithRecentLimit sets how many messages Recent returns (default 10).
func WithRecentLimit(n int) HistoryOption {
	return func(h *History) {
		if n > 0 {
			h.recentLimit = n
		}
	}
}

// WithSaveEvery sets the message-count persistence cadence (default 5).
func WithSaveEvery(n int) HistoryOption {
	return func(h *History) {
		if n > 0 {
			h.saveEvery = n
		}
	}
}

// WithPersister attaches durable storage. Without one, history is
// memory-only.
func WithPersister(p Persister) HistoryOption {
	return func(h *History) {
		h.persister = p
	}
}

// WithHistoryClock replaces the timestamp source for tests.
func WithHistoryClock(clock func() time.Time) HistoryOption {
	return func(h *History) {
		h.clock = clock
	}
}

// NewHistory creates a History manager.
func NewHistory(opts ...HistoryOption) *History {
	h := &History{
		logs:        map[string][]model.ChatMessage{},
		clock:       time.Now,
		recentLimit: defaultRecentLimit,
		saveEvery:   defaultSaveEvery,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Add appends one message to a session's log and triggers persistence every
// saveEvery messages. The persist write happens outside the lock; its
// failure never reaches the caller.
func (h *History) Add(ctx context.Context, sessionKey, role, content string, meta map[string]any) {
	if sessionKey == "" {
		return
	}

	msg := model.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: h.clock().UTC(),
		Meta:      meta,
	}

	h.mu.Lock()
	h.logs[sessionKey] = append(h.logs[sessionKey], msg)
	count := len(h.logs[sessionKey])

	var toPersist []model.ChatMessage
	if h.persister != nil && count%h.saveEvery == 0 {
		toPersist = make([]model.ChatMessage, count)
		copy(toPersist, h.logs[sessionKey])
	}
	h.mu.Unlock()

	if toPersist != nil {
		if err := h.persister.SaveHistory(ctx, sessionKey, toPersist); err != nil {
			logging.From(ctx).Warn("failed to persist chat history",
				"session", sessionKey, "error", err)
		}
	}
}

// Recent returns the newest messages of a session in chronological order, at
// most the configured window.
func (h *History) Recent(sessionKey string) []model.ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	log := h.logs[sessionKey]
	if len(log) > h.recentLimit {
		log = log[len(log)-h.recentLimit:]
	}

	out := make([]model.ChatMessage, len(log))
	copy(out, log)
	return out
}

// Len returns the total number of messages recorded for a session.
func (h *History) Len(sessionKey string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.logs[sessionKey])
}
