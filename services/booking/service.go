package booking

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"campsite/config"
	"campsite/database"
	"campsite/models"
	"campsite/services/calendar"
	"campsite/services/notification"
	"campsite/utils"
)

// DefaultBookingService implements BookingService over the JSON-file store.
// Every operation runs under one mutex: load-check-mutate-save is an
// exclusive section, so concurrent requests cannot lose updates.
type DefaultBookingService struct {
	mu sync.Mutex

	store       *database.Store
	live        *models.LiveData
	archive     *models.ArchiveData
	transitions Transitions
	mappings    *config.FieldMappings
	calendar    calendar.Client
	notifier    notification.Service
	retention   time.Duration

	// now is swappable for tests; defaults to utils.NowLocal.
	now func() time.Time
}

// NewDefaultBookingService loads both aggregates (with checksum
// verification) and wires the collaborators.
func NewDefaultBookingService(
	store *database.Store,
	transitions Transitions,
	mappings *config.FieldMappings,
	cal calendar.Client,
	notifier notification.Service,
	retentionDays int,
) (*DefaultBookingService, error) {
	s := &DefaultBookingService{
		store:       store,
		transitions: transitions,
		mappings:    mappings,
		calendar:    cal,
		notifier:    notifier,
		retention:   time.Duration(retentionDays) * 24 * time.Hour,
		now:         utils.NowLocal,
	}
	if err := s.Reload(true); err != nil {
		return nil, fmt.Errorf("NewDefaultBookingService: %w", err)
	}
	return s, nil
}

// Reload re-reads both aggregates from disk. Checksum or validation
// failures abort the reload; the previous in-memory state is kept.
func (s *DefaultBookingService) Reload(verifyChecksum bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, err := s.store.LoadLive(verifyChecksum)
	if err != nil {
		return fmt.Errorf("Reload: %w", err)
	}
	archive, err := s.store.LoadArchive(verifyChecksum)
	if err != nil {
		return fmt.Errorf("Reload: %w", err)
	}

	s.live = live
	s.archive = archive
	return nil
}

// List returns filtered deep copies of the live bookings, sorted by status
// priority then arrival time.
func (s *DefaultBookingService) List(filter ListFilter) []models.LiveBooking {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := []models.LiveBooking{}
	for i := range s.live.Items {
		rec := &s.live.Items[i]
		if filter.ID != "" && rec.Booking.ID != filter.ID {
			continue
		}
		if filter.Status != "" && rec.Tracking.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && !filter.To.IsZero() {
			overlaps := filter.From.Before(rec.Booking.Departing) && filter.To.After(rec.Booking.Arriving)
			if !overlaps {
				continue
			}
		}
		results = append(results, rec.Clone())
	}

	sort.SliceStable(results, func(i, j int) bool {
		pi, pj := results[i].Tracking.Status.Priority(), results[j].Tracking.Status.Priority()
		if pi != pj {
			return pi < pj
		}
		return results[i].Booking.Arriving.Before(results[j].Booking.Arriving)
	})
	return results
}

// Get returns a deep copy of one booking by id.
func (s *DefaultBookingService) Get(id string) (*models.LiveBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.findByID(id)
	if rec == nil {
		return nil, fmt.Errorf("Get: %s: %w", id, ErrNotFound)
	}
	out := rec.Clone()
	return &out, nil
}

// ArchiveList returns a copy of the archive aggregate.
func (s *DefaultBookingService) ArchiveList() models.ArchiveData {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := models.ArchiveData{
		SchemaVersion: s.archive.SchemaVersion,
		Updated:       s.archive.Updated,
		Items:         make([]models.BookingData, 0, len(s.archive.Items)),
	}
	for i := range s.archive.Items {
		out.Items = append(out.Items, s.archive.Items[i].Clone())
	}
	return out
}

// States reveals the status names and their valid transitions.
func (s *DefaultBookingService) States() States {
	return States{Names: models.StatusOptions(), Transitions: s.transitions}
}

// Age renders how long ago the live data was last ingested, or "NEVER".
func (s *DefaultBookingService) Age() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live.Updated.IsZero() {
		return "NEVER"
	}
	return utils.SecsToHuman(int64(s.now().Sub(s.live.Updated).Seconds()))
}

// findByID returns the live record with the matching id. Callers hold the
// mutex.
func (s *DefaultBookingService) findByID(id string) *models.LiveBooking {
	for i := range s.live.Items {
		if s.live.Items[i].Booking.ID == id {
			return &s.live.Items[i]
		}
	}
	return nil
}

// addNote stamps a new audit note entry onto a record's tracking state.
func (s *DefaultBookingService) addNote(tracking *models.TrackingData, text string) {
	tracking.AddNote(utils.NoteTimestamp(s.now(), true), text)
}

var _ BookingService = (*DefaultBookingService)(nil)
