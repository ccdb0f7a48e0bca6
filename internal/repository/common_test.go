package repository

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"event-ticketing/config"
	"event-ticketing/internal/database"
	"event-ticketing/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testDB 測試資料庫；連不上時為 nil，Postgres 測試會被略過
var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	cfg := config.LoadTestConfig()
	ctx := context.Background()

	pool, err := database.InitDatabase(ctx, &cfg.Database)
	if err != nil {
		log.Printf("Test database unavailable, skipping Postgres tests: %v", err)
	} else if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Printf("Failed to ensure schema, skipping Postgres tests: %v", err)
		pool.Close()
	} else {
		testDB = pool
	}

	code := m.Run()
	if testDB != nil {
		testDB.Close()
	}
	os.Exit(code)
}

// getTestDB 回傳清空後的測試資料庫
func getTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testDB == nil {
		t.Skip("test database not available")
	}
	_, err := testDB.Exec(context.Background(), "TRUNCATE bookings, events CASCADE")
	require.NoError(t, err)
	return testDB
}

func newTestEvent(status model.EventStatus, capacity, available int, price string) *model.Event {
	return &model.Event{
		ID:               uuid.New(),
		OrganizerID:      "organizer-1",
		Title:            "Summer Concert",
		Description:      "Outdoor live show",
		Location:         "Taipei Arena",
		StartsAt:         time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Microsecond),
		TicketPrice:      decimal.RequireFromString(price),
		Capacity:         capacity,
		TicketsAvailable: available,
		Status:           status,
	}
}

func newTestBooking(eventID uuid.UUID, userID string, quantity int) *model.Booking {
	return &model.Booking{
		ID:         uuid.New(),
		EventID:    eventID,
		UserID:     userID,
		Quantity:   quantity,
		TotalPrice: model.TotalPriceFor(decimal.NewFromInt(10), quantity),
		Status:     model.BookingStatusConfirmed,
	}
}
