package booking

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"campsite/models"
	"campsite/utils"
)

// ChangeStatus applies one user-driven status transition. All checks reject
// with a ValidationError before anything mutates; on success the record is
// mutated, noted, the leader notified and the calendar synchronized, then
// the aggregate is persisted once. A crash before that save leaves the
// previous persisted state intact.
func (s *DefaultBookingService) ChangeStatus(ctx context.Context, id string, newStatus models.Status, description string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := utils.GetLogger()

	rec := s.findByID(id)
	if rec == nil {
		logger.Warn("Booking ID returned no records", zap.String("booking_id", id))
		return nil, fmt.Errorf("ChangeStatus: %s: %w", id, ErrNotFound)
	}

	from := rec.Tracking.Status

	if !s.transitions.Can(from, newStatus) {
		logger.Warn("Invalid status transition",
			zap.String("booking_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(newStatus)))
		return nil, validationErrorf("Invalid transition for %s: %s > %s", id, from, newStatus)
	}

	// A cancelled booking only comes back to life while its arrival date
	// is still ahead of us.
	if from == models.StatusCancelled && newStatus == models.StatusNew {
		if !rec.Booking.Arriving.After(s.now()) {
			return nil, validationErrorf("Unable to resurrect booking %s: arrival date is in the past!", id)
		}
	}

	description = strings.TrimSpace(description)
	switch newStatus {
	case models.StatusCancelled:
		if description == "" {
			return nil, validationErrorf("Cancellation reason is required.")
		}
	case models.StatusPending:
		if description == "" {
			return nil, validationErrorf("Reason for pending or question to requester is required.")
		}
	}

	rec.Tracking.Status = newStatus
	switch newStatus {
	case models.StatusCancelled:
		rec.Tracking.CancelReason = description
		s.addNote(&rec.Tracking, fmt.Sprintf("Cancel Reason: %s", description))
	case models.StatusPending:
		rec.Tracking.PendQuestion = description
		s.addNote(&rec.Tracking, fmt.Sprintf("Pend Question: %s", description))
	}

	var warnings []string
	if err := s.notifier.NotifyStatus(rec); err != nil {
		warnings = append(warnings, err.Error())
	}
	if warn := s.syncCalendar(ctx, rec); warn != "" {
		warnings = append(warnings, warn)
	}

	s.addNote(&rec.Tracking, fmt.Sprintf("Status changed [%s] > [%s]", from, newStatus))

	if err := s.store.SaveLive(s.live); err != nil {
		return warnings, fmt.Errorf("ChangeStatus: %w", err)
	}

	logger.Info("Status changed",
		zap.String("booking_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(newStatus)))
	return warnings, nil
}
