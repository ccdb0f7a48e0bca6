package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema 可重複執行；CHECK 條件守住 0 <= tickets_available <= capacity
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id                UUID PRIMARY KEY,
		organizer_id      TEXT NOT NULL,
		title             TEXT NOT NULL,
		description       TEXT NOT NULL DEFAULT '',
		location          TEXT NOT NULL DEFAULT '',
		starts_at         TIMESTAMPTZ NOT NULL,
		ticket_price      NUMERIC(12, 2) NOT NULL CHECK (ticket_price >= 0),
		capacity          INTEGER NOT NULL CHECK (capacity >= 0),
		tickets_available INTEGER NOT NULL,
		status            TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'approved', 'declined')),
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT events_tickets_available_range
			CHECK (tickets_available >= 0 AND tickets_available <= capacity)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id           UUID PRIMARY KEY,
		event_id     UUID NOT NULL REFERENCES events (id),
		user_id      TEXT NOT NULL,
		quantity     INTEGER NOT NULL CHECK (quantity > 0),
		total_price  NUMERIC(12, 2) NOT NULL CHECK (total_price >= 0),
		status       TEXT NOT NULL DEFAULT 'confirmed'
			CHECK (status IN ('confirmed', 'cancelled')),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		cancelled_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_user_id_idx ON bookings (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS bookings_event_id_idx ON bookings (event_id)`,
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
