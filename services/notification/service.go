package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"

	"campsite/models"
	"campsite/utils"
)

// notifiableStatuses are the only statuses that trigger an email.
var notifiableStatuses = map[models.Status]bool{
	models.StatusConfirmed: true,
	models.StatusCancelled: true,
	models.StatusPending:   true,
}

// emailContext is the data handed to the email template.
type emailContext struct {
	Leader       string
	BookingID    string
	ArrivingStr  string
	DepartingStr string
	StatusStr    string
	StatusColour string
	Body         string
}

var baseEmailTemplate = template.Must(template.New("base_email").Parse(`<html>
<body style="font-family: sans-serif;">
  <p>Dear {{.Leader}},</p>
  <p>Your booking <b>{{.BookingID}}</b> is now
     <b style="color: {{.StatusColour}};">{{.StatusStr}}</b>.</p>
  <p>Arriving: {{.ArrivingStr}}<br>Departing: {{.DepartingStr}}</p>
  {{if .Body}}<p>{{.Body}}</p>{{end}}
  <p>Please reply to this email if anything looks wrong.</p>
</body>
</html>`))

// DefaultNotificationService implements the notification policy.
type DefaultNotificationService struct {
	Mailer   Mailer
	Enabled  bool
	SiteName string

	// Now is swappable for tests; defaults to utils.NowLocal.
	Now func() time.Time
}

// NewDefaultNotificationService wires the policy over a mailer.
func NewDefaultNotificationService(mailer Mailer, enabled bool, siteName string) *DefaultNotificationService {
	return &DefaultNotificationService{
		Mailer:   mailer,
		Enabled:  enabled,
		SiteName: siteName,
		Now:      utils.NowLocal,
	}
}

// NotifyStatus emails the leader for Confirmed, Cancelled and Pending
// bookings. The delivery attempt time is stamped onto the record even when
// sending is globally disabled, so re-entry does not double-send later.
func (s *DefaultNotificationService) NotifyStatus(rec *models.LiveBooking) error {
	logger := utils.GetLogger()

	if !notifiableStatuses[rec.Tracking.Status] {
		return nil
	}

	now := s.Now()
	switch rec.Tracking.Status {
	case models.StatusPending:
		rec.Tracking.PendingEmailSent = &now
	case models.StatusConfirmed:
		rec.Tracking.ConfirmEmailSent = &now
	case models.StatusCancelled:
		rec.Tracking.CancelEmailSent = &now
	}

	if !s.Enabled {
		logger.Info("Email sending disabled, notification recorded only",
			zap.String("booking_id", rec.Booking.ID),
			zap.String("status", string(rec.Tracking.Status)))
		return nil
	}

	subject, body, err := s.render(rec)
	if err != nil {
		return fmt.Errorf("NotifyStatus: %s: %w", rec.Booking.ID, err)
	}

	if err := s.Mailer.Send(rec.Leader.Email, subject, body); err != nil {
		logger.Error("Failed to send notification email",
			zap.String("booking_id", rec.Booking.ID),
			zap.String("to", rec.Leader.Email),
			zap.Error(err))
		return fmt.Errorf("NotifyStatus: send to %s: %w", rec.Leader.Email, err)
	}

	logger.Info("Notification email sent",
		zap.String("booking_id", rec.Booking.ID),
		zap.String("status", string(rec.Tracking.Status)))
	return nil
}

func (s *DefaultNotificationService) render(rec *models.LiveBooking) (subject, body string, err error) {
	ctx := emailContext{
		Leader:       rec.Leader.Name,
		BookingID:    rec.Booking.ID,
		ArrivingStr:  utils.PrettyDate(rec.Booking.Arriving),
		DepartingStr: utils.PrettyDate(rec.Booking.Departing),
		StatusStr:    string(rec.Tracking.Status),
	}

	switch rec.Tracking.Status {
	case models.StatusConfirmed:
		ctx.StatusColour = "green"
	case models.StatusCancelled:
		ctx.StatusColour = "red"
		ctx.Body = fmt.Sprintf("Cancel Reason: %s", rec.Tracking.CancelReason)
	case models.StatusPending:
		ctx.StatusColour = "#FF8C00"
		ctx.Body = fmt.Sprintf("Pend Question: %s", rec.Tracking.PendQuestion)
	default:
		ctx.StatusColour = "black"
	}

	var rendered bytes.Buffer
	if err := baseEmailTemplate.Execute(&rendered, ctx); err != nil {
		return "", "", fmt.Errorf("render email template: %w", err)
	}

	subject = fmt.Sprintf("%s Booking for %s: %s %s",
		s.SiteName, utils.PrettyDate(rec.Booking.Arriving), rec.Booking.ID, ctx.StatusStr)
	return subject, rendered.String(), nil
}

var _ Service = (*DefaultNotificationService)(nil)
