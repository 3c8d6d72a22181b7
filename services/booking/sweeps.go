package booking

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"campsite/models"
	"campsite/utils"
)

// AutoUpdateStatuses advances every Confirmed booking whose departure has
// passed: to Invoice when money is still owed, straight to Completed
// otherwise. This is the one system-privileged transition that bypasses
// the transition table. Returns the ids that moved.
func (s *DefaultBookingService) AutoUpdateStatuses(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := utils.GetLogger()
	now := s.now()

	var changed []string
	for i := range s.live.Items {
		rec := &s.live.Items[i]
		if rec.Tracking.Status != models.StatusConfirmed {
			continue
		}
		if !rec.Booking.Departing.Before(now) {
			continue
		}

		next := models.StatusCompleted
		if rec.Tracking.CostEstimate > 0 {
			next = models.StatusInvoice
		}
		rec.Tracking.Status = next
		s.addNote(&rec.Tracking, fmt.Sprintf("Auto Status Change: [%s] > [%s]",
			models.StatusConfirmed, next))
		logger.Info("Auto status change",
			zap.String("booking_id", rec.Booking.ID),
			zap.String("to", string(next)))
		changed = append(changed, rec.Booking.ID)
	}

	if len(changed) == 0 {
		return nil, nil
	}
	if err := s.store.SaveLive(s.live); err != nil {
		return changed, fmt.Errorf("AutoUpdateStatuses: %w", err)
	}
	return changed, nil
}

// ArchiveOldBookings moves Completed bookings whose departure is past the
// retention window into the archive. Leader contact details and tracking
// state are dropped; only the booking facts survive. The archive is saved
// before the live aggregate, and membership is hash-checked on append, so
// a crash between the two saves re-archives cleanly on the next sweep.
func (s *DefaultBookingService) ArchiveOldBookings(ctx context.Context) (int, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := utils.GetLogger()
	now := s.now()

	var warnings []string
	var kept []models.LiveBooking
	moved := 0

	for i := range s.live.Items {
		rec := &s.live.Items[i]

		eligible := rec.Tracking.Status == models.StatusCompleted &&
			rec.Booking.Departing.Add(s.retention).Before(now)
		if !eligible {
			kept = append(kept, *rec)
			continue
		}

		if rec.Tracking.GoogleCalendarID != "" {
			if err := s.calendar.DeleteEvent(ctx, rec.Tracking.GoogleCalendarID); err != nil {
				logger.Warn("Calendar event deletion failed during archival",
					zap.String("booking_id", rec.Booking.ID), zap.Error(err))
				warnings = append(warnings,
					fmt.Sprintf("Calendar delete failed for %s: %v", rec.Booking.ID, err))
			}
			rec.Tracking.GoogleCalendarID = ""
		}

		if !s.archiveHasMD5(rec.Booking.OriginalSheetMD5) {
			s.archive.Items = append(s.archive.Items, rec.Booking.Clone())
		}
		logger.Info("Booking archived", zap.String("booking_id", rec.Booking.ID))
		moved++
	}

	if moved == 0 {
		return 0, warnings, nil
	}

	s.archive.Updated = now
	if err := s.store.SaveArchive(s.archive); err != nil {
		return 0, warnings, fmt.Errorf("ArchiveOldBookings: %w", err)
	}

	s.live.Items = kept
	if err := s.store.SaveLive(s.live); err != nil {
		return moved, warnings, fmt.Errorf("ArchiveOldBookings: %w", err)
	}
	return moved, warnings, nil
}

func (s *DefaultBookingService) archiveHasMD5(hash string) bool {
	for i := range s.archive.Items {
		if s.archive.Items[i].OriginalSheetMD5 == hash {
			return true
		}
	}
	return false
}
