package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"

	"campsite/models"
	"campsite/utils"
)

// Fields that exist on the record but must never be set through a field
// update. Identity and provenance are immutable, status moves only through
// ChangeStatus, notes only grow through the audit trail, event_type is
// derived from the dates, and the calendar reference and email stamps
// belong to the system.
var protectedFields = map[string]map[string]bool{
	"booking": {
		"id":                 true,
		"original_sheet_md5": true,
		"submitted":          true,
		"event_type":         true,
	},
	"leader": {},
	"tracking": {
		"status":             true,
		"notes":              true,
		"google_calendar_id": true,
		"pending_email_sent": true,
		"confirm_email_sent": true,
		"cancel_email_sent":  true,
	},
}

// ModifyFields merges per-section field updates into one booking. Sections
// are keyed booking/leader/tracking and fields by their serialized names.
// The whole call validates as a unit: any bad section, unknown field or
// failed record validation rejects everything and the record is untouched.
// Every applied change lands in the audit notes, and a date change
// re-sends the current status notification.
func (s *DefaultBookingService) ModifyFields(ctx context.Context, id string, updates map[string]map[string]any) (bool, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.findByID(id)
	if rec == nil {
		return false, nil, fmt.Errorf("ModifyFields: %s: %w", id, ErrNotFound)
	}

	draft := rec.Clone()

	for section, fields := range updates {
		protected, ok := protectedFields[section]
		if !ok {
			return false, nil, validationErrorf("Unknown section %q", section)
		}

		var target any
		switch section {
		case "booking":
			target = &draft.Booking
		case "leader":
			target = &draft.Leader
		case "tracking":
			target = &draft.Tracking
		}

		known := fieldNames(target)
		for name := range fields {
			if protected[name] {
				return false, nil, validationErrorf("Field %s.%s cannot be modified", section, name)
			}
			if !known[name] {
				return false, nil, validationErrorf("Unknown field %s.%s", section, name)
			}
		}

		if err := overlayFields(target, fields); err != nil {
			return false, nil, validationErrorf("Bad value in section %s: %v", section, err)
		}
	}

	draft.Booking.EventType = models.DeriveEventType(draft.Booking.Arriving, draft.Booking.Departing)

	if err := draft.Validate(); err != nil {
		return false, nil, validationErrorf("Update rejected: %v", err)
	}

	changes := diffRecord(rec, &draft)
	if len(changes) == 0 {
		return false, nil, nil
	}

	datesChanged := !rec.Booking.Arriving.Equal(draft.Booking.Arriving) ||
		!rec.Booking.Departing.Equal(draft.Booking.Departing)

	*rec = draft
	for _, change := range changes {
		s.addNote(&rec.Tracking, change)
	}

	var warnings []string
	if datesChanged {
		if err := s.notifier.NotifyStatus(rec); err != nil {
			warnings = append(warnings, err.Error())
		}
	}
	if warn := s.syncCalendar(ctx, rec); warn != "" {
		warnings = append(warnings, warn)
	}

	if err := s.store.SaveLive(s.live); err != nil {
		return true, warnings, fmt.Errorf("ModifyFields: %w", err)
	}

	utils.GetLogger().Info("Booking fields modified",
		zap.String("booking_id", id),
		zap.Int("changes", len(changes)))
	return true, warnings, nil
}

// overlayFields merges a partial field map onto a typed section through a
// JSON round-trip, so values parse exactly as they would from the data
// file.
func overlayFields(target any, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

// fieldNames returns the set of serialized field names of a section struct.
func fieldNames(target any) map[string]bool {
	t := reflect.TypeOf(target).Elem()
	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		names[strings.Split(tag, ",")[0]] = true
	}
	return names
}

// diffRecord renders one audit note line per field that differs between
// the current record and the draft. Notes themselves are excluded.
func diffRecord(current, draft *models.LiveBooking) []string {
	var out []string
	out = append(out, diffSection(&current.Booking, &draft.Booking)...)
	out = append(out, diffSection(&current.Leader, &draft.Leader)...)
	out = append(out, diffSection(&current.Tracking, &draft.Tracking)...)
	return out
}

func diffSection(current, draft any) []string {
	t := reflect.TypeOf(current).Elem()
	cv := reflect.ValueOf(current).Elem()
	dv := reflect.ValueOf(draft).Elem()

	var out []string
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		if tag == "" || tag == "-" || tag == "notes" {
			continue
		}
		a, b := cv.Field(i).Interface(), dv.Field(i).Interface()
		if fieldEqual(a, b) {
			continue
		}
		out = append(out, fmt.Sprintf("%s changed from [%s] to [%s]",
			tag, renderValue(a), renderValue(b)))
	}
	return out
}

func fieldEqual(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		return at.Equal(b.(time.Time))
	}
	return reflect.DeepEqual(a, b)
}

func renderValue(v any) string {
	switch val := v.(type) {
	case time.Time:
		return utils.NoteTimestamp(val, false)
	case *time.Time:
		if val == nil {
			return "never"
		}
		return utils.NoteTimestamp(*val, false)
	case []string:
		return strings.Join(val, " + ")
	default:
		return fmt.Sprintf("%v", val)
	}
}
