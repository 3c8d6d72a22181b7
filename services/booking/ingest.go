package booking

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"campsite/models"
	"campsite/services/sheets"
	"campsite/utils"
)

// Source row formats. The form records full timestamps for submission and
// arrival but only a clock time for departure, taken to be on the arrival
// date.
const (
	rowTimestampFormat = "02/01/2006 15:04:05"
	rowClockFormat     = "15:04:05"
)

// AddNewData ingests a sheet pull into the live aggregate. Rows are
// deduplicated by content hash against both live and archived bookings, so
// re-ingesting the same pull is a no-op. Malformed rows are logged and
// skipped; they never block the rest of the pull.
func (s *DefaultBookingService) AddNewData(ctx context.Context, result *sheets.Result) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := utils.GetLogger()

	if result == nil || result.Updated.IsZero() {
		return 0, nil
	}
	s.live.Updated = result.Updated

	added := 0
	for _, sheet := range result.Sheets {
		for _, row := range sheet.Rows {
			rowMD5 := md5OfRow(row)
			if s.hasMD5(rowMD5) {
				continue
			}

			rec, err := s.recordFromRow(row, sheet.GroupType, rowMD5)
			if err != nil {
				logger.Error("Skipping malformed sheet row",
					zap.String("sheet", sheet.Name), zap.Error(err))
				continue
			}

			s.addNote(&rec.Tracking, "Pulled from sheets")
			s.live.Items = append(s.live.Items, *rec)
			s.live.NextIdx++
			logger.Info("New booking added", zap.String("booking_id", rec.Booking.ID))
			added++
		}
	}

	if err := s.store.SaveLive(s.live); err != nil {
		return added, fmt.Errorf("AddNewData: %w", err)
	}
	return added, nil
}

// recordFromRow builds a new booking record from one normalized sheet row,
// using the configured field mappings. The id is minted from the group
// type prefix, the arrival year and the running counter.
func (s *DefaultBookingService) recordFromRow(row sheets.Row, groupType, rowMD5 string) (*models.LiveBooking, error) {
	loc := utils.SiteLocation()

	submitted, err := time.ParseInLocation(rowTimestampFormat, row["timestamp"], loc)
	if err != nil {
		return nil, fmt.Errorf("recordFromRow: timestamp %q: %w", row["timestamp"], err)
	}
	arriving, err := time.ParseInLocation(rowTimestampFormat, row["arrival_date_time"], loc)
	if err != nil {
		return nil, fmt.Errorf("recordFromRow: arrival %q: %w", row["arrival_date_time"], err)
	}
	depClock, err := time.Parse(rowClockFormat, row["departure_time"])
	if err != nil {
		return nil, fmt.Errorf("recordFromRow: departure %q: %w", row["departure_time"], err)
	}
	departing := time.Date(arriving.Year(), arriving.Month(), arriving.Day(),
		depClock.Hour(), depClock.Minute(), depClock.Second(), 0, loc)

	// Row-level group type beats the sheet-level one, and the configured
	// default catches sheets that carry neither.
	if row["group_type"] != "" {
		groupType = row["group_type"]
	}
	if groupType == "" {
		groupType = s.mappings.DefaultGroupType
	}

	rec := &models.LiveBooking{
		Booking: models.BookingData{
			ID: fmt.Sprintf("%s-%d-%04d",
				s.mappings.Prefix(groupType), arriving.Year(), s.live.NextIdx),
			OriginalSheetMD5: rowMD5,
			GroupType:        groupType,
			EventType:        models.DeriveEventType(arriving, departing),
			Submitted:        submitted,
			Arriving:         arriving,
			Departing:        departing,
		},
		Tracking: models.TrackingData{Status: models.StatusNew},
	}

	for key, src := range s.mappings.KeyMapping.Booking {
		val := strings.TrimSpace(row[src])
		switch key {
		case "group_name":
			rec.Booking.GroupName = val
		case "group_size":
			size, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("recordFromRow: group size %q: %w", val, err)
			}
			rec.Booking.GroupSize = size
		}
	}

	for key, src := range s.mappings.KeyMapping.Leader {
		val := strings.TrimSpace(row[src])
		switch key {
		case "name":
			rec.Leader.Name = val
		case "email":
			rec.Leader.Email = val
		case "phone":
			rec.Leader.Phone = val
		}
	}

	// The campsite column lists requested facilities; anything not
	// configured as bookable is kept aside as the booker's comment.
	var extras []string
	for _, part := range strings.Split(row["campsite"], "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if s.mappings.IsBookableFacility(part) {
			rec.Booking.Facilities = append(rec.Booking.Facilities, part)
		} else {
			extras = append(extras, part)
		}
	}
	if len(extras) > 0 {
		rec.Tracking.BookersComment = strings.Join(extras, " + ")
	}

	rec.Tracking.CostEstimate = s.mappings.EstimateCost(
		rec.Booking.EventType, rec.Booking.GroupSize, rec.Booking.Facilities)

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("recordFromRow: %w", err)
	}
	return rec, nil
}

// hasMD5 reports whether a row hash is already known, live or archived.
// Callers hold the mutex.
func (s *DefaultBookingService) hasMD5(hash string) bool {
	for i := range s.live.Items {
		if s.live.Items[i].Booking.OriginalSheetMD5 == hash {
			return true
		}
	}
	for i := range s.archive.Items {
		if s.archive.Items[i].OriginalSheetMD5 == hash {
			return true
		}
	}
	return false
}

// md5OfRow hashes a row's content. Serializing the map sorts the keys, so
// the hash is stable regardless of column order.
func md5OfRow(row sheets.Row) string {
	raw, _ := json.Marshal(row)
	return fmt.Sprintf("%x", md5.Sum(raw))
}
