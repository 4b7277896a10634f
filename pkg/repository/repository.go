package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var ErrHistoryNotFound = goerr.New("history not found")

// Repository defines the interface for chat history metadata persistence. The
// message payload itself goes to blob storage; the repository only records
// which sessions have durable history and when it was last written.
type Repository interface {
	// PutHistory saves or replaces the metadata record for a session
	PutHistory(ctx context.Context, meta *model.HistoryMeta) error

	// GetHistory retrieves the metadata record for a session
	GetHistory(ctx context.Context, sessionKey string) (*model.HistoryMeta, error)

	// ListHistories retrieves metadata records, most recently updated first
	ListHistories(ctx context.Context, limit int) ([]*model.HistoryMeta, error)
}

// memoryRepo implements Repository in process memory, for tests and
// single-node development runs.
type memoryRepo struct {
	mu    sync.RWMutex
	metas map[string]*model.HistoryMeta
}

// NewMemory creates an in-memory Repository
func NewMemory() Repository {
	return &memoryRepo{
		metas: map[string]*model.HistoryMeta{},
	}
}

func (r *memoryRepo) PutHistory(_ context.Context, meta *model.HistoryMeta) error {
	if meta.SessionKey == "" {
		return goerr.New("session key is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *meta
	r.metas[meta.SessionKey] = &copied
	return nil
}

func (r *memoryRepo) GetHistory(_ context.Context, sessionKey string) (*model.HistoryMeta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.metas[sessionKey]
	if !ok {
		return nil, goerr.Wrap(ErrHistoryNotFound, "no metadata for session", goerr.V("key", sessionKey))
	}
	copied := *meta
	return &copied, nil
}

func (r *memoryRepo) ListHistories(_ context.Context, limit int) ([]*model.HistoryMeta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metas := make([]*model.HistoryMeta, 0, len(r.metas))
	for _, meta := range r.metas {
		copied := *meta
		metas = append(metas, &copied)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})

	if limit > 0 && len(metas) > limit {
		metas = metas[:limit]
	}
	return metas, nil
}
