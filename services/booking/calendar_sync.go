package booking

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"campsite/models"
	"campsite/utils"
)

type calendarVerb int

const (
	calendarNone calendarVerb = iota
	calendarEnsure
	calendarRemove
)

// calendarAction decides what the remote calendar should hold for one
// booking. Confirmed stays ensure until archival; Invoice stays visible
// while the stay is still within the retention window so late paperwork
// can be chased against a real slot.
func (s *DefaultBookingService) calendarAction(rec *models.LiveBooking) calendarVerb {
	expired := rec.Booking.Departing.Add(s.retention).Before(s.now())

	switch rec.Tracking.Status {
	case models.StatusConfirmed:
		return calendarEnsure
	case models.StatusInvoice:
		if expired {
			return calendarNone
		}
		return calendarEnsure
	case models.StatusCompleted:
		if expired {
			return calendarRemove
		}
		return calendarNone
	default:
		// New, Pending, Cancelled, Archived.
		return calendarRemove
	}
}

// syncCalendar brings the remote calendar in line with one booking's
// current status. Failures come back as a warning string; local state is
// already committed and never rolled back for a calendar error.
func (s *DefaultBookingService) syncCalendar(ctx context.Context, rec *models.LiveBooking) string {
	logger := utils.GetLogger()

	switch s.calendarAction(rec) {
	case calendarEnsure:
		if rec.Tracking.GoogleCalendarID == "" {
			eventID, err := s.calendar.CreateEvent(ctx, rec)
			if err != nil {
				logger.Warn("Calendar event creation failed",
					zap.String("booking_id", rec.Booking.ID), zap.Error(err))
				return fmt.Sprintf("Calendar create failed for %s: %v", rec.Booking.ID, err)
			}
			rec.Tracking.GoogleCalendarID = eventID
			s.addNote(&rec.Tracking, "Calendar event created")
			return ""
		}
		if err := s.calendar.UpdateEvent(ctx, rec.Tracking.GoogleCalendarID, rec); err != nil {
			logger.Warn("Calendar event update failed",
				zap.String("booking_id", rec.Booking.ID), zap.Error(err))
			return fmt.Sprintf("Calendar update failed for %s: %v", rec.Booking.ID, err)
		}
		return ""

	case calendarRemove:
		if rec.Tracking.GoogleCalendarID == "" {
			return ""
		}
		if err := s.calendar.DeleteEvent(ctx, rec.Tracking.GoogleCalendarID); err != nil {
			logger.Warn("Calendar event deletion failed",
				zap.String("booking_id", rec.Booking.ID), zap.Error(err))
			return fmt.Sprintf("Calendar delete failed for %s: %v", rec.Booking.ID, err)
		}
		rec.Tracking.GoogleCalendarID = ""
		s.addNote(&rec.Tracking, "Calendar event removed")
		return ""
	}
	return ""
}

// FixCalendarEvents audits every live booking against the remote calendar
// and buckets the findings. With apply=false nothing changes anywhere;
// with apply=true missing events are created, stale ones deleted, drifted
// references repaired and orphaned remote events removed. Remote events
// that carry no booking tag are not ours and are left alone.
func (s *DefaultBookingService) FixCalendarEvents(ctx context.Context, apply bool) (*CalendarAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := utils.GetLogger()

	events, err := s.calendar.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("FixCalendarEvents: %w", err)
	}

	// Tagged remote events, keyed by the booking they claim to belong to.
	// More than one event can carry the same tag; all of them are kept so
	// duplicates get cleaned up rather than shadowed.
	remote := make(map[string][]string, len(events))
	for _, ev := range events {
		if ev.BookingID != "" {
			remote[ev.BookingID] = append(remote[ev.BookingID], ev.ID)
		}
	}

	audit := &CalendarAudit{
		InSync:   []string{},
		Missing:  []string{},
		Stale:    []string{},
		Orphaned: []string{},
		Applied:  apply,
	}
	dirty := false

	for i := range s.live.Items {
		rec := &s.live.Items[i]
		id := rec.Booking.ID
		eventIDs := remote[id]
		delete(remote, id)

		switch s.calendarAction(rec) {
		case calendarEnsure:
			if len(eventIDs) == 0 {
				audit.Missing = append(audit.Missing, id)
				if apply {
					newID, err := s.calendar.CreateEvent(ctx, rec)
					if err != nil {
						logger.Warn("Calendar event creation failed",
							zap.String("booking_id", id), zap.Error(err))
						continue
					}
					rec.Tracking.GoogleCalendarID = newID
					s.addNote(&rec.Tracking, "Calendar event created")
					dirty = true
				}
				continue
			}

			// One event stays; prefer the one the record already points
			// at so the reference does not churn.
			keep := eventIDs[0]
			for _, eventID := range eventIDs {
				if eventID == rec.Tracking.GoogleCalendarID {
					keep = eventID
					break
				}
			}

			audit.InSync = append(audit.InSync, id)
			// The event is there but the stored reference may have drifted.
			if apply && rec.Tracking.GoogleCalendarID != keep {
				rec.Tracking.GoogleCalendarID = keep
				dirty = true
			}

			// Any further events with the same tag are duplicates nothing
			// owns.
			for _, extra := range eventIDs {
				if extra == keep {
					continue
				}
				audit.Orphaned = append(audit.Orphaned, id)
				if apply {
					if err := s.calendar.DeleteEvent(ctx, extra); err != nil {
						logger.Warn("Duplicate calendar event deletion failed",
							zap.String("booking_id", id), zap.Error(err))
					}
				}
			}

		default:
			// Remove and none both mean no event should exist right now;
			// for none we still flag one that does, since nothing will
			// ever recreate it correctly.
			if len(eventIDs) > 0 {
				audit.Stale = append(audit.Stale, id)
				if apply {
					deletedAll := true
					for _, eventID := range eventIDs {
						if err := s.calendar.DeleteEvent(ctx, eventID); err != nil {
							logger.Warn("Calendar event deletion failed",
								zap.String("booking_id", id), zap.Error(err))
							deletedAll = false
						}
					}
					if deletedAll {
						rec.Tracking.GoogleCalendarID = ""
						s.addNote(&rec.Tracking, "Calendar event removed")
						dirty = true
					}
				}
				continue
			}
			if apply && rec.Tracking.GoogleCalendarID != "" {
				// Dangling reference to an event that no longer exists.
				rec.Tracking.GoogleCalendarID = ""
				dirty = true
			}
		}
	}

	// Whatever is left carries a booking tag that matches nothing live.
	for bookingID, eventIDs := range remote {
		for _, eventID := range eventIDs {
			audit.Orphaned = append(audit.Orphaned, bookingID)
			if apply {
				if err := s.calendar.DeleteEvent(ctx, eventID); err != nil {
					logger.Warn("Orphaned calendar event deletion failed",
						zap.String("booking_id", bookingID), zap.Error(err))
				}
			}
		}
	}

	if dirty {
		if err := s.store.SaveLive(s.live); err != nil {
			return audit, fmt.Errorf("FixCalendarEvents: %w", err)
		}
	}

	logger.Info("Calendar reconciliation complete",
		zap.Int("in_sync", len(audit.InSync)),
		zap.Int("missing", len(audit.Missing)),
		zap.Int("stale", len(audit.Stale)),
		zap.Int("orphaned", len(audit.Orphaned)),
		zap.Bool("applied", apply))
	return audit, nil
}
