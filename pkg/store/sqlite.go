// Package store is the SQLite-backed bookings database. The check-in
// application owns writes; the concierge reads rooms and bookings to answer
// availability questions and to back the dashboard rooms endpoint.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/m-mizutani/goerr/v2"

	_ "modernc.org/sqlite"
)

var ErrBookingNotFound = goerr.New("booking not found")

type Store struct {
	db *sql.DB
}

// New opens the bookings database at path, creating it if needed.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("path", path))
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to apply sqlite pragmas")
	}
	return &Store{db: db}, nil
}

// AutoMigrate creates the rooms and bookings tables.
func (s *Store) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			room_no TEXT PRIMARY KEY,
			room_type TEXT NOT NULL DEFAULT 'Luxury Tent',
			night_rate REAL NOT NULL DEFAULT 0,
			available INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			guest_email TEXT NOT NULL,
			guest_name TEXT NOT NULL,
			room_no TEXT NOT NULL,
			check_in TEXT NOT NULL,
			check_out TEXT NOT NULL,
			pending_balance REAL NOT NULL DEFAULT 0,
			workflow_stage TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY(room_no) REFERENCES rooms(room_no)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_email ON bookings(guest_email);`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return goerr.Wrap(err, "failed to run migration")
		}
	}
	return nil
}

// UpsertRoom saves or replaces a room row.
func (s *Store) UpsertRoom(ctx context.Context, room *model.Room) error {
	available := 0
	if room.Available {
		available = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (room_no, room_type, night_rate, available)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(room_no) DO UPDATE SET
			room_type = excluded.room_type,
			night_rate = excluded.night_rate,
			available = excluded.available`,
		room.RoomNo, room.RoomType, room.NightRate, available)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert room", goerr.V("room", room.RoomNo))
	}
	return nil
}

// ListRooms returns all rooms ordered by room number.
func (s *Store) ListRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_no, room_type, night_rate, available FROM rooms ORDER BY room_no`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list rooms")
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		var room model.Room
		var available int
		if err := rows.Scan(&room.RoomNo, &room.RoomType, &room.NightRate, &available); err != nil {
			return nil, goerr.Wrap(err, "failed to scan room row")
		}
		room.Available = available != 0
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate room rows")
	}
	return rooms, nil
}

// CreateBooking inserts a booking row.
func (s *Store) CreateBooking(ctx context.Context, booking *model.Booking) error {
	createdAt := booking.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (id, guest_email, guest_name, room_no, check_in, check_out,
			pending_balance, workflow_stage, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID, booking.GuestEmail, booking.GuestName, booking.RoomNo,
		booking.CheckIn.UTC().Format(time.RFC3339),
		booking.CheckOut.UTC().Format(time.RFC3339),
		booking.PendingBalance, booking.WorkflowStage,
		createdAt.UTC().Format(time.RFC3339))
	if err != nil {
		return goerr.Wrap(err, "failed to insert booking", goerr.V("id", booking.ID))
	}
	return nil
}

// GetBookingByEmail returns the newest booking for a guest email.
func (s *Store) GetBookingByEmail(ctx context.Context, email string) (*model.Booking, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, guest_email, guest_name, room_no, check_in, check_out,
			pending_balance, workflow_stage, created_at
		 FROM bookings WHERE guest_email = ?
		 ORDER BY created_at DESC LIMIT 1`, email)

	var booking model.Booking
	var checkIn, checkOut, createdAt string
	err := row.Scan(&booking.ID, &booking.GuestEmail, &booking.GuestName, &booking.RoomNo,
		&checkIn, &checkOut, &booking.PendingBalance, &booking.WorkflowStage, &createdAt)
	if err == sql.ErrNoRows {
		return nil, goerr.Wrap(ErrBookingNotFound, "no booking for email", goerr.V("email", email))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scan booking row", goerr.V("email", email))
	}

	booking.CheckIn, _ = time.Parse(time.RFC3339, checkIn)
	booking.CheckOut, _ = time.Parse(time.RFC3339, checkOut)
	booking.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &booking, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
