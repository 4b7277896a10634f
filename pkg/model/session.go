package model

import (
	"time"
)

// GuestProfile is the normalized view of a guest session. The authentication
// layer owns the raw record; the concierge core only reads these fields.
type GuestProfile struct {
	ClientID       string  `json:"client_id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	BookingID      string  `json:"booking_id"`
	WorkflowStage  string  `json:"workflow_stage"`
	RoomAllotted   string  `json:"room_alloted"`
	CheckIn        string  `json:"check_in"`
	CheckOut       string  `json:"check_out"`
	PendingBalance float64 `json:"pending_balance"`
}

// RegisteredGuest reports whether the profile belongs to a guest with an
// allotted room. Non-guests get the restricted prompt and policy treatment.
func (x *GuestProfile) RegisteredGuest() bool {
	return x != nil && x.RoomAllotted != ""
}

// GuestSession is one authenticated session. Key is a stable identifier,
// typically the guest email or client id. Raw is an opaque passthrough of
// whatever the authentication collaborator produced.
type GuestSession struct {
	Key        string       `json:"key"`
	Normalized GuestProfile `json:"normalized"`
	Raw        any          `json:"raw,omitempty"`
	LastLogin  time.Time    `json:"last_login"`
}

// ChatMessage is one append-only entry of a session's conversation log.
type ChatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HistoryMeta is the durable metadata record for a persisted chat history.
// The message payload itself lives in blob storage, keyed by session.
type HistoryMeta struct {
	SessionKey   string
	MessageCount int
	UpdatedAt    time.Time
}
