package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"campsite/models"
	"campsite/utils"
)

// bookingIDProperty is the private extended property carrying our booking id
// on every event we own.
const bookingIDProperty = "booking_id"

// GoogleClient implements Client against the Google Calendar v3 API using a
// service account.
type GoogleClient struct {
	service    *gcal.Service
	calendarID string
	timezone   string
}

// NewGoogleClient builds the service from a service account credentials file.
func NewGoogleClient(ctx context.Context, serviceAccountFile, calendarID, timezone string) (*GoogleClient, error) {
	service, err := gcal.NewService(ctx,
		option.WithCredentialsFile(serviceAccountFile),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("NewGoogleClient: build calendar service: %w", err)
	}
	return &GoogleClient{
		service:    service,
		calendarID: calendarID,
		timezone:   timezone,
	}, nil
}

// CreateEvent inserts a new event for the booking and returns its id.
func (c *GoogleClient) CreateEvent(ctx context.Context, rec *models.LiveBooking) (string, error) {
	created, err := c.service.Events.
		Insert(c.calendarID, c.eventBody(rec)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("CreateEvent: %s: %w", rec.Booking.ID, err)
	}

	utils.GetLogger().Info("Calendar event created",
		zap.String("booking_id", rec.Booking.ID),
		zap.String("event_id", created.Id))
	return created.Id, nil
}

// UpdateEvent overwrites an existing event with the booking's current state.
func (c *GoogleClient) UpdateEvent(ctx context.Context, eventID string, rec *models.LiveBooking) error {
	_, err := c.service.Events.
		Update(c.calendarID, eventID, c.eventBody(rec)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("UpdateEvent: %s event %s: %w", rec.Booking.ID, eventID, err)
	}
	return nil
}

// DeleteEvent removes an event from the calendar.
func (c *GoogleClient) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.service.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("DeleteEvent: event %s: %w", eventID, err)
	}
	utils.GetLogger().Info("Calendar event deleted", zap.String("event_id", eventID))
	return nil
}

// ListEvents pages through the full calendar and returns every event,
// carrying the booking id tag when one is present.
func (c *GoogleClient) ListEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	pageToken := ""

	for {
		call := c.service.Events.List(c.calendarID).
			SingleEvents(true).
			MaxResults(250).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("ListEvents: %w", err)
		}

		for _, item := range page.Items {
			ev := Event{
				ID:      item.Id,
				Summary: item.Summary,
			}
			if item.ExtendedProperties != nil {
				ev.BookingID = item.ExtendedProperties.Private[bookingIDProperty]
			}
			if item.Start != nil && item.Start.DateTime != "" {
				ev.Start, _ = time.Parse(time.RFC3339, item.Start.DateTime)
			}
			if item.End != nil && item.End.DateTime != "" {
				ev.End, _ = time.Parse(time.RFC3339, item.End.DateTime)
			}
			events = append(events, ev)
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			return events, nil
		}
	}
}

func (c *GoogleClient) eventBody(rec *models.LiveBooking) *gcal.Event {
	description := fmt.Sprintf(
		"Booking for campsite: %s\nNumber of people: %d\nStatus: %s",
		strings.Join(rec.Booking.Facilities, " + "),
		rec.Booking.GroupSize,
		rec.Tracking.Status,
	)

	return &gcal.Event{
		Summary:     fmt.Sprintf("%s - %s", rec.Booking.GroupName, rec.Leader.Name),
		Description: description,
		Start: &gcal.EventDateTime{
			DateTime: rec.Booking.Arriving.Format(time.RFC3339),
			TimeZone: c.timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: rec.Booking.Departing.Format(time.RFC3339),
			TimeZone: c.timezone,
		},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{bookingIDProperty: rec.Booking.ID},
		},
	}
}
