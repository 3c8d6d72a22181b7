package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the workflow state of a booking.
type Status string

const (
	StatusNew       Status = "New"
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusInvoice   Status = "Invoice"
	StatusCompleted Status = "Completed"
	StatusArchived  Status = "Archived"
	StatusCancelled Status = "Cancelled"
)

// statusOptions is the canonical ordering, also used as the sort priority in
// booking listings.
var statusOptions = []Status{
	StatusNew,
	StatusPending,
	StatusConfirmed,
	StatusInvoice,
	StatusCompleted,
	StatusArchived,
	StatusCancelled,
}

// StatusOptions returns all statuses in display order.
func StatusOptions() []Status {
	out := make([]Status, len(statusOptions))
	copy(out, statusOptions)
	return out
}

// ParseStatus validates a raw string against the known status set.
func ParseStatus(raw string) (Status, bool) {
	for _, s := range statusOptions {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Priority returns the sort rank of the status in listings.
func (s Status) Priority() int {
	for i, opt := range statusOptions {
		if s == opt {
			return i
		}
	}
	return len(statusOptions)
}

// Event types, derived from the arrival/departure pair.
const (
	EventTypeDay       = "day"
	EventTypeEvening   = "evening"
	EventTypeOvernight = "overnight"
)

// eveningStartHour splits same-day visits into day and evening events.
const eveningStartHour = 18

// DeriveEventType classifies a visit from its arrival and departure times.
// A visit spanning midnight is an overnight; a same-day visit ending at or
// after 18:00 is an evening, otherwise a day visit.
func DeriveEventType(arriving, departing time.Time) string {
	if arriving.Year() != departing.Year() || arriving.YearDay() != departing.YearDay() {
		return EventTypeOvernight
	}
	if departing.Hour() >= eveningStartHour {
		return EventTypeEvening
	}
	return EventTypeDay
}

// LeaderData holds the contact details of the person responsible for the
// booking. Discarded when the booking is archived.
type LeaderData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Validate checks the leader contact details.
func (l *LeaderData) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("leader name is required")
	}
	if !strings.Contains(l.Email, "@") {
		return fmt.Errorf("leader email %q is not a valid address", l.Email)
	}
	return nil
}

// BookingData holds the immutable facts of a booking. This is the only part
// of a record retained after archival.
type BookingData struct {
	ID               string    `json:"id"`
	OriginalSheetMD5 string    `json:"original_sheet_md5"`
	GroupType        string    `json:"group_type"`
	GroupName        string    `json:"group_name"`
	GroupSize        int       `json:"group_size"`
	EventType        string    `json:"event_type"`
	Facilities       []string  `json:"facilities"`
	Submitted        time.Time `json:"submitted"`
	Arriving         time.Time `json:"arriving"`
	Departing        time.Time `json:"departing"`
}

// Validate checks the booking facts.
func (b *BookingData) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("booking id is required")
	}
	if b.OriginalSheetMD5 == "" {
		return fmt.Errorf("booking %s: original sheet hash is required", b.ID)
	}
	if b.GroupName == "" {
		return fmt.Errorf("booking %s: group name is required", b.ID)
	}
	if b.GroupSize <= 0 {
		return fmt.Errorf("booking %s: group size must be positive, got %d", b.ID, b.GroupSize)
	}
	switch b.EventType {
	case EventTypeDay, EventTypeEvening, EventTypeOvernight:
	default:
		return fmt.Errorf("booking %s: unknown event type %q", b.ID, b.EventType)
	}
	if b.Submitted.IsZero() || b.Arriving.IsZero() || b.Departing.IsZero() {
		return fmt.Errorf("booking %s: submitted, arriving and departing are required", b.ID)
	}
	if !b.Arriving.Before(b.Departing) {
		return fmt.Errorf("booking %s: arriving %s must be before departing %s",
			b.ID, b.Arriving.Format(time.RFC3339), b.Departing.Format(time.RFC3339))
	}
	return nil
}

// Clone returns a deep copy of the booking facts.
func (b *BookingData) Clone() BookingData {
	out := *b
	out.Facilities = append([]string(nil), b.Facilities...)
	return out
}

// TrackingData holds the mutable workflow state of a booking. Discarded when
// the booking is archived.
type TrackingData struct {
	Status           Status     `json:"status"`
	CostEstimate     int64      `json:"cost_estimate"`
	Notes            string     `json:"notes"`
	BookersComment   string     `json:"bookers_comment,omitempty"`
	GoogleCalendarID string     `json:"google_calendar_id,omitempty"`
	PendingEmailSent *time.Time `json:"pending_email_sent,omitempty"`
	ConfirmEmailSent *time.Time `json:"confirm_email_sent,omitempty"`
	CancelEmailSent  *time.Time `json:"cancel_email_sent,omitempty"`
	PendQuestion     string     `json:"pend_question,omitempty"`
	CancelReason     string     `json:"cancel_reason,omitempty"`
}

// Validate checks the tracking state.
func (t *TrackingData) Validate() error {
	if _, ok := ParseStatus(string(t.Status)); !ok {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	if t.CostEstimate < 0 {
		return fmt.Errorf("cost estimate must not be negative, got %d", t.CostEstimate)
	}
	return nil
}

// AddNote prepends a timestamped entry to the audit notes, newest first.
func (t *TrackingData) AddNote(stamp, text string) {
	entry := fmt.Sprintf("[%s]: %s", stamp, text)
	if t.Notes == "" {
		t.Notes = entry
		return
	}
	t.Notes = entry + "\n" + t.Notes
}

// NoteCount returns the number of audit note entries.
func (t *TrackingData) NoteCount() int {
	if t.Notes == "" {
		return 0
	}
	return len(strings.Split(t.Notes, "\n"))
}

// Clone returns a deep copy of the tracking state.
func (t *TrackingData) Clone() TrackingData {
	out := *t
	out.PendingEmailSent = cloneTime(t.PendingEmailSent)
	out.ConfirmEmailSent = cloneTime(t.ConfirmEmailSent)
	out.CancelEmailSent = cloneTime(t.CancelEmailSent)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// LiveBooking binds the booking facts, the leader contact details and the
// workflow state into one record.
type LiveBooking struct {
	Booking  BookingData  `json:"booking"`
	Leader   LeaderData   `json:"leader"`
	Tracking TrackingData `json:"tracking"`
}

// Validate checks the whole record.
func (r *LiveBooking) Validate() error {
	if err := r.Booking.Validate(); err != nil {
		return err
	}
	if err := r.Leader.Validate(); err != nil {
		return fmt.Errorf("booking %s: %w", r.Booking.ID, err)
	}
	if err := r.Tracking.Validate(); err != nil {
		return fmt.Errorf("booking %s: %w", r.Booking.ID, err)
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *LiveBooking) Clone() LiveBooking {
	return LiveBooking{
		Booking:  r.Booking.Clone(),
		Leader:   r.Leader,
		Tracking: r.Tracking.Clone(),
	}
}

// Normalize shifts all timestamps into the given civil timezone. JSON
// round-trips preserve the instant and offset but lose the zone name.
func (r *LiveBooking) Normalize(loc *time.Location) {
	r.Booking.Submitted = r.Booking.Submitted.In(loc)
	r.Booking.Arriving = r.Booking.Arriving.In(loc)
	r.Booking.Departing = r.Booking.Departing.In(loc)
	for _, t := range []*time.Time{
		r.Tracking.PendingEmailSent,
		r.Tracking.ConfirmEmailSent,
		r.Tracking.CancelEmailSent,
	} {
		if t != nil {
			*t = t.In(loc)
		}
	}
}
