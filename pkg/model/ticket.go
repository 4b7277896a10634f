package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	TicketOpen       TicketStatus = "Open"
	TicketInProgress TicketStatus = "In Progress"
	TicketResolved   TicketStatus = "Resolved"
)

// Unresolved reports whether a ticket still dispatches staff. Used by the
// dedup guard to decide if a matching record blocks a new ticket.
func (x TicketStatus) Unresolved() bool {
	return x == TicketOpen || x == TicketInProgress
}

type TicketID string

// NewTicketID generates a short human-readable ticket id, e.g. TCK-3FA92.
func NewTicketID() TicketID {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return TicketID("TCK-" + hex[:5])
}

// TicketRecord is one row of the external ticket sheet. The core writes
// records and reads a recent window for deduplication; staff dashboards own
// status transitions.
type TicketRecord struct {
	ID          TicketID
	Email       string
	Name        string
	RoomNo      string
	Request     string
	Category    string
	AssignedTo  string
	Status      TicketStatus
	CreatedAt   time.Time
	ResolvedAt  *time.Time
	Notes       string
}
