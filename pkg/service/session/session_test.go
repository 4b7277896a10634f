package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/ilora-retreats/concierge/pkg/service/session"
	"github.com/m-mizutani/gt"
)

func newSession(key string, lastLogin time.Time) *model.GuestSession {
	return &model.GuestSession{
		Key: key,
		Normalized: model.GuestProfile{
			Email:        key + "@example.com",
			Name:         "Guest " + key,
			RoomAllotted: "101",
		},
		LastLogin: lastLogin,
	}
}

func TestStoreGetPut(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	gt.NoError(t, store.Put(ctx, newSession("alice", time.Now())))

	sess, err := store.Get(ctx, "alice")
	gt.NoError(t, err)
	gt.Equal(t, sess.Key, "alice")
	gt.Equal(t, sess.Normalized.Email, "alice@example.com")

	_, err = store.Get(ctx, "nobody")
	gt.True(t, errors.Is(err, session.ErrSessionNotFound))
}

func TestLatestPicksNewestLogin(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	t1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	// Insertion order deliberately differs from login order.
	gt.NoError(t, store.Put(ctx, newSession("second", t2)))
	gt.NoError(t, store.Put(ctx, newSession("third", t3)))
	gt.NoError(t, store.Put(ctx, newSession("first", t1)))

	sess, err := store.Latest(ctx)
	gt.NoError(t, err)
	gt.Equal(t, sess.Key, "third")
}

func TestLatestTimestamplessLoses(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	gt.NoError(t, store.Put(ctx, newSession("dated", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))))
	gt.NoError(t, store.Put(ctx, newSession("undated", time.Time{})))

	sess, err := store.Latest(ctx)
	gt.NoError(t, err)
	gt.Equal(t, sess.Key, "dated")
}

func TestLatestInsertionOrderFallback(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	gt.NoError(t, store.Put(ctx, newSession("older", time.Time{})))
	gt.NoError(t, store.Put(ctx, newSession("newer", time.Time{})))

	sess, err := store.Latest(ctx)
	gt.NoError(t, err)
	gt.Equal(t, sess.Key, "newer")
}

func TestLatestEmptyStore(t *testing.T) {
	store := session.NewMemoryStore()
	_, err := store.Latest(context.Background())
	gt.True(t, errors.Is(err, session.ErrNoSessions))
}

// recordingPersister counts SaveHistory calls and keeps the last payload.
type recordingPersister struct {
	mu    sync.Mutex
	calls int
	last  []model.ChatMessage
	err   error
}

func (p *recordingPersister) SaveHistory(_ context.Context, _ string, messages []model.ChatMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.calls++
	p.last = messages
	return nil
}

func TestHistoryRecentWindow(t *testing.T) {
	ctx := context.Background()
	hist := session.NewHistory()

	for i := 0; i < 13; i++ {
		hist.Add(ctx, "alice", model.RoleUser, fmt.Sprintf("message %d", i), nil)
	}

	recent := hist.Recent("alice")
	gt.A(t, recent).Length(10)
	gt.Equal(t, recent[0].Content, "message 3")
	gt.Equal(t, recent[9].Content, "message 12")
	gt.Equal(t, hist.Len("alice"), 13)
}

func TestHistoryPersistCadence(t *testing.T) {
	ctx := context.Background()
	persister := &recordingPersister{}
	hist := session.NewHistory(session.WithPersister(persister))

	for i := 0; i < 4; i++ {
		hist.Add(ctx, "alice", model.RoleUser, fmt.Sprintf("message %d", i), nil)
	}
	gt.Equal(t, persister.calls, 0)

	hist.Add(ctx, "alice", model.RoleAssistant, "message 4", nil)
	gt.Equal(t, persister.calls, 1)
	gt.A(t, persister.last).Length(5)

	for i := 5; i < 10; i++ {
		hist.Add(ctx, "alice", model.RoleUser, fmt.Sprintf("message %d", i), nil)
	}
	gt.Equal(t, persister.calls, 2)
	gt.A(t, persister.last).Length(10)
}

func TestHistoryPersistFailureSwallowed(t *testing.T) {
	ctx := context.Background()
	persister := &recordingPersister{err: errors.New("bucket offline")}
	hist := session.NewHistory(session.WithPersister(persister), session.WithSaveEvery(1))

	// Add has no error return; a failing persister must not panic or lose
	// the in-memory log.
	hist.Add(ctx, "alice", model.RoleUser, "hello", nil)
	gt.Equal(t, hist.Len("alice"), 1)
}

func TestHistorySessionsIsolated(t *testing.T) {
	ctx := context.Background()
	hist := session.NewHistory()

	hist.Add(ctx, "alice", model.RoleUser, "hello from alice", nil)
	hist.Add(ctx, "bob", model.RoleUser, "hello from bob", nil)

	gt.A(t, hist.Recent("alice")).Length(1)
	gt.Equal(t, hist.Recent("bob")[0].Content, "hello from bob")
	gt.A(t, hist.Recent("carol")).Length(0)
}
