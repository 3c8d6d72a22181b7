// Package notification decides when a booking's leader must be emailed and
// hands delivery to the mailer.
package notification

import (
	"campsite/models"
)

// Mailer delivers a rendered message. Implementations own transport
// concerns; a delivery failure never rolls back the state change that
// triggered it.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// Service is the notification policy over the Mailer.
type Service interface {
	// NotifyStatus emails the leader when the booking's status warrants it.
	// It stamps the matching *_email_sent tracking field on the record and
	// returns a non-nil error only when delivery was attempted and failed.
	NotifyStatus(rec *models.LiveBooking) error
}
