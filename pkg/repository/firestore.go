package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const historyCollection = "chat_histories"

// firestoreRepo implements Repository interface using Firestore
type firestoreRepo struct {
	client *firestore.Client
}

type historyDoc struct {
	SessionKey   string    `firestore:"session_key"`
	MessageCount int       `firestore:"message_count"`
	UpdatedAt    time.Time `firestore:"updated_at"`
}

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (Repository, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client")
	}

	return &firestoreRepo{client: client}, nil
}

func (r *firestoreRepo) PutHistory(ctx context.Context, meta *model.HistoryMeta) error {
	if meta.SessionKey == "" {
		return goerr.New("session key is empty")
	}

	doc := historyDoc{
		SessionKey:   meta.SessionKey,
		MessageCount: meta.MessageCount,
		UpdatedAt:    meta.UpdatedAt,
	}

	_, err := r.client.Collection(historyCollection).Doc(meta.SessionKey).Set(ctx, doc)
	if err != nil {
		return goerr.Wrap(err, "failed to put history metadata", goerr.V("key", meta.SessionKey))
	}
	return nil
}

func (r *firestoreRepo) GetHistory(ctx context.Context, sessionKey string) (*model.HistoryMeta, error) {
	snap, err := r.client.Collection(historyCollection).Doc(sessionKey).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrHistoryNotFound, "no metadata for session", goerr.V("key", sessionKey))
		}
		return nil, goerr.Wrap(err, "failed to get history metadata", goerr.V("key", sessionKey))
	}

	var doc historyDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode history metadata")
	}

	return &model.HistoryMeta{
		SessionKey:   doc.SessionKey,
		MessageCount: doc.MessageCount,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

func (r *firestoreRepo) ListHistories(ctx context.Context, limit int) ([]*model.HistoryMeta, error) {
	query := r.client.Collection(historyCollection).OrderBy("updated_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list history metadata")
	}

	metas := make([]*model.HistoryMeta, 0, len(snaps))
	for _, snap := range snaps {
		var doc historyDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode history metadata")
		}
		metas = append(metas, &model.HistoryMeta{
			SessionKey:   doc.SessionKey,
			MessageCount: doc.MessageCount,
			UpdatedAt:    doc.UpdatedAt,
		})
	}

	return metas, nil
}
