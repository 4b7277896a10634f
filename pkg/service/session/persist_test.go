package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/ilora-retreats/concierge/pkg/adapter"
	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/ilora-retreats/concierge/pkg/repository"
	"github.com/ilora-retreats/concierge/pkg/service/session"
	"github.com/m-mizutani/gt"
)

func TestBlobPersisterRoundTrip(t *testing.T) {
	ctx := context.Background()

	storage, err := adapter.NewLocalStorage(t.TempDir())
	gt.NoError(t, err)
	repo := repository.NewMemory()
	persister := session.NewBlobPersister(storage, repo)

	messages := []model.ChatMessage{
		{Role: model.RoleUser, Content: "What time is check-in?", Timestamp: time.Now().UTC()},
		{Role: model.RoleAssistant, Content: "Check-in is after 2 PM.", Timestamp: time.Now().UTC()},
	}
	gt.NoError(t, persister.SaveHistory(ctx, "guest@example.com", messages))

	loaded, err := session.LoadHistory(ctx, storage, "guest@example.com")
	gt.NoError(t, err)
	gt.A(t, loaded).Length(2)
	gt.Equal(t, loaded[0].Content, "What time is check-in?")
	gt.Equal(t, loaded[1].Role, model.RoleAssistant)

	meta, err := repo.GetHistory(ctx, "guest@example.com")
	gt.NoError(t, err)
	gt.Equal(t, meta.MessageCount, 2)

	// A later save overwrites both the blob and the metadata row.
	messages = append(messages, model.ChatMessage{Role: model.RoleUser, Content: "thanks"})
	gt.NoError(t, persister.SaveHistory(ctx, "guest@example.com", messages))

	metas, err := repo.ListHistories(ctx, 10)
	gt.NoError(t, err)
	gt.A(t, metas).Length(1)
	gt.Equal(t, metas[0].MessageCount, 3)
}
