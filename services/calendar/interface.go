// Package calendar talks to the external calendar the confirmed bookings are
// published to.
package calendar

import (
	"context"
	"time"

	"campsite/models"
)

// Event is one remote calendar entry, tagged with the booking id it was
// created for so the reconciliation sweep can match it back.
type Event struct {
	ID        string
	BookingID string
	Summary   string
	Start     time.Time
	End       time.Time
}

// Client defines the calendar operations the booking service relies on.
// Implementations own their own timeouts and retries; the booking service
// treats every failure as reported-but-non-fatal.
type Client interface {
	CreateEvent(ctx context.Context, rec *models.LiveBooking) (string, error)
	UpdateEvent(ctx context.Context, eventID string, rec *models.LiveBooking) error
	DeleteEvent(ctx context.Context, eventID string) error
	ListEvents(ctx context.Context) ([]Event, error)
}
