// Package booking is the manager for the booking lifecycle: status
// transitions, field edits, ingestion, the time-based sweeps and the
// calendar reconciliation policy.
package booking

import (
	"context"
	"time"

	"campsite/models"
	"campsite/services/sheets"
)

// ListFilter narrows a booking listing. Zero values are ignored. From/To
// select bookings whose stay overlaps the half-open range.
type ListFilter struct {
	ID     string
	Status models.Status
	From   time.Time
	To     time.Time
}

// CalendarAudit is the outcome of a reconciliation sweep, bucketed by what
// the sweep found for every live booking and remote event.
type CalendarAudit struct {
	InSync   []string `json:"in_sync"`
	Missing  []string `json:"missing"`
	Stale    []string `json:"stale"`
	Orphaned []string `json:"orphaned"`
	Applied  bool     `json:"applied"`
}

// BookingService defines the operations the web layer calls. Collaborator
// failures (calendar, mailer) surface in the returned warnings and never
// block or reverse a local state change.
type BookingService interface {
	// Reload re-reads both aggregates from disk.
	Reload(verifyChecksum bool) error

	// List returns filtered deep copies, sorted by status priority then
	// arrival time.
	List(filter ListFilter) []models.LiveBooking

	// Get returns a deep copy of one booking, or ErrNotFound.
	Get(id string) (*models.LiveBooking, error)

	// ArchiveList returns a copy of the archive aggregate.
	ArchiveList() models.ArchiveData

	// States reveals the status names and their valid transitions.
	States() States

	// Age renders how long ago the live data was last ingested.
	Age() string

	// ChangeStatus applies one user-driven transition.
	ChangeStatus(ctx context.Context, id string, newStatus models.Status, description string) ([]string, error)

	// ModifyFields merges the per-section field updates into one booking.
	// Reports whether anything changed.
	ModifyFields(ctx context.Context, id string, updates map[string]map[string]any) (bool, []string, error)

	// AddNewData ingests sheet rows, deduplicating by content hash.
	// Returns the number of new bookings.
	AddNewData(ctx context.Context, result *sheets.Result) (int, error)

	// AutoUpdateStatuses advances Confirmed bookings whose departure has
	// passed. Returns the ids it changed.
	AutoUpdateStatuses(ctx context.Context) ([]string, error)

	// ArchiveOldBookings migrates expired Completed bookings to the
	// archive, stripped of personal data. Returns how many moved.
	ArchiveOldBookings(ctx context.Context) (int, []string, error)

	// FixCalendarEvents reconciles local calendar references against the
	// remote calendar. apply=false is a dry run.
	FixCalendarEvents(ctx context.Context, apply bool) (*CalendarAudit, error)
}
