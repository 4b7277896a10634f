package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ilora-retreats/concierge/pkg/adapter"
	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/ilora-retreats/concierge/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
)

// blobPersister writes the full message log to blob storage and records a
// metadata row per session in the repository. The blob is the source of
// truth; the metadata exists for listing and freshness checks.
type blobPersister struct {
	storage adapter.Storage
	repo    repository.Repository
	clock   func() time.Time
}

// NewBlobPersister creates a Persister backed by blob storage plus a
// metadata repository.
func NewBlobPersister(storage adapter.Storage, repo repository.Repository) Persister {
	return &blobPersister{
		storage: storage,
		repo:    repo,
		clock:   time.Now,
	}
}

func historyBlobKey(sessionKey string) string {
	return "histories/" + sessionKey + ".json"
}

func (p *blobPersister) SaveHistory(ctx context.Context, sessionKey string, messages []model.ChatMessage) error {
	w, err := p.storage.Put(ctx, historyBlobKey(sessionKey))
	if err != nil {
		return goerr.Wrap(err, "failed to open history blob", goerr.V("session", sessionKey))
	}

	if err := json.NewEncoder(w).Encode(messages); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to encode history", goerr.V("session", sessionKey))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to close history blob", goerr.V("session", sessionKey))
	}

	meta := &model.HistoryMeta{
		SessionKey:   sessionKey,
		MessageCount: len(messages),
		UpdatedAt:    p.clock().UTC(),
	}
	if err := p.repo.PutHistory(ctx, meta); err != nil {
		return goerr.Wrap(err, "failed to save history metadata", goerr.V("session", sessionKey))
	}

	return nil
}

// LoadHistory reads a session's persisted message log back from blob
// storage.
func LoadHistory(ctx context.Context, storage adapter.Storage, sessionKey string) ([]model.ChatMessage, error) {
	r, err := storage.Get(ctx, historyBlobKey(sessionKey))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open history blob", goerr.V("session", sessionKey))
	}
	defer r.Close()

	var messages []model.ChatMessage
	if err := json.NewDecoder(r).Decode(&messages); err != nil {
		return nil, goerr.Wrap(err, "failed to decode history", goerr.V("session", sessionKey))
	}
	return messages, nil
}
