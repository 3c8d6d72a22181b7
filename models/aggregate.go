package models

import (
	"fmt"
	"time"
)

// SchemaVersion is the current on-disk schema version of both data files.
// Older versions are migrated on load.
const SchemaVersion = 2

// LiveData is the aggregate root for all active bookings.
type LiveData struct {
	SchemaVersion int           `json:"schema_version"`
	Updated       time.Time     `json:"updated"`
	NextIdx       int           `json:"next_idx"`
	Items         []LiveBooking `json:"items"`
}

// NewLiveData returns an empty live aggregate at the current schema version.
func NewLiveData(now time.Time) *LiveData {
	return &LiveData{
		SchemaVersion: SchemaVersion,
		Updated:       now,
		NextIdx:       1,
		Items:         []LiveBooking{},
	}
}

// Validate checks the aggregate and every record in it.
func (d *LiveData) Validate() error {
	if d.SchemaVersion != SchemaVersion {
		return fmt.Errorf("live data: schema version %d, want %d", d.SchemaVersion, SchemaVersion)
	}
	if d.NextIdx < 1 {
		return fmt.Errorf("live data: next_idx must be at least 1, got %d", d.NextIdx)
	}
	seen := make(map[string]bool, len(d.Items))
	for i := range d.Items {
		if err := d.Items[i].Validate(); err != nil {
			return fmt.Errorf("live data item %d: %w", i, err)
		}
		id := d.Items[i].Booking.ID
		if seen[id] {
			return fmt.Errorf("live data: duplicate booking id %s", id)
		}
		seen[id] = true
	}
	return nil
}

// Normalize shifts all timestamps into the given civil timezone.
func (d *LiveData) Normalize(loc *time.Location) {
	d.Updated = d.Updated.In(loc)
	for i := range d.Items {
		d.Items[i].Normalize(loc)
	}
}

// ArchiveData holds the booking facts of completed-and-expired bookings.
// Leader and tracking data are stripped before a record lands here.
type ArchiveData struct {
	SchemaVersion int           `json:"schema_version"`
	Updated       time.Time     `json:"updated"`
	Items         []BookingData `json:"items"`
}

// NewArchiveData returns an empty archive aggregate at the current schema version.
func NewArchiveData(now time.Time) *ArchiveData {
	return &ArchiveData{
		SchemaVersion: SchemaVersion,
		Updated:       now,
		Items:         []BookingData{},
	}
}

// Validate checks the aggregate and every archived booking in it.
func (d *ArchiveData) Validate() error {
	if d.SchemaVersion != SchemaVersion {
		return fmt.Errorf("archive data: schema version %d, want %d", d.SchemaVersion, SchemaVersion)
	}
	for i := range d.Items {
		if err := d.Items[i].Validate(); err != nil {
			return fmt.Errorf("archive data item %d: %w", i, err)
		}
	}
	return nil
}

// Normalize shifts all timestamps into the given civil timezone.
func (d *ArchiveData) Normalize(loc *time.Location) {
	d.Updated = d.Updated.In(loc)
	for i := range d.Items {
		b := &d.Items[i]
		b.Submitted = b.Submitted.In(loc)
		b.Arriving = b.Arriving.In(loc)
		b.Departing = b.Departing.In(loc)
	}
}
