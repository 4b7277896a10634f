package concierge

import (
	"context"
	"time"

	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/ilora-retreats/concierge/pkg/utils/textnorm"
)

// TicketSink is the external ticket store. The core appends records and reads
// a recent window for deduplication; staff dashboards own status transitions.
type TicketSink interface {
	Append(ctx context.Context, rec *model.TicketRecord) error
	Recent(ctx context.Context, limit int) ([]model.TicketRecord, error)
}

// OrderSink persists room-service orders.
type OrderSink interface {
	Append(ctx context.Context, order *model.Order) error
}

// findOpenDuplicate scans recent ticket records for an unresolved ticket with
// the same room and normalized request text. Side-effect free; the caller
// decides whether to create a new ticket. The bounded window means very old
// open duplicates are not caught, an accepted tradeoff for latency.
func findOpenDuplicate(roomNo, requestText string, recent []model.TicketRecord) (model.TicketID, bool) {
	requestNorm := textnorm.Normalize(requestText)
	if requestNorm == "" {
		return "", false
	}

	for _, rec := range recent {
		if rec.RoomNo == roomNo &&
			textnorm.Normalize(rec.Request) == requestNorm &&
			rec.Status.Unresolved() {
			return rec.ID, true
		}
	}
	return "", false
}

// newTicket builds a ticket record for a guest request. Assigned To mirrors
// the category so the staff sheet routes it to the right team.
func newTicket(profile *model.GuestProfile, requestText string, category model.Intent, now time.Time) *model.TicketRecord {
	email := "N/A"
	name := "Guest"
	room := "N/A"
	if profile != nil {
		if profile.Email != "" {
			email = profile.Email
		}
		if profile.Name != "" {
			name = profile.Name
		}
		if profile.RoomAllotted != "" {
			room = profile.RoomAllotted
		}
	}

	return &model.TicketRecord{
		ID:         model.NewTicketID(),
		Email:      email,
		Name:       name,
		RoomNo:     room,
		Request:    requestText,
		Category:   string(category),
		AssignedTo: string(category),
		Status:     model.TicketOpen,
		CreatedAt:  now.UTC(),
	}
}
