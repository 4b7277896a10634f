package model

import "time"

// Room is one bookable unit. The property only offers luxury tents, so
// RoomType is effectively constant, but the column exists in the store.
type Room struct {
	RoomNo    string
	RoomType  string
	NightRate float64
	Available bool
}

// Booking is a confirmed reservation row from the bookings store.
type Booking struct {
	ID             string
	GuestEmail     string
	GuestName      string
	RoomNo         string
	CheckIn        time.Time
	CheckOut       time.Time
	PendingBalance float64
	WorkflowStage  string
	CreatedAt      time.Time
}
