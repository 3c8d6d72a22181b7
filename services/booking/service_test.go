package booking

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campsite/config"
	"campsite/database"
	"campsite/models"
	"campsite/services/calendar"
	"campsite/services/notification"
	"campsite/services/sheets"
)

func TestMain(m *testing.M) {
	config.AppConfig.Timezone = "UTC"
	os.Exit(m.Run())
}

// testNow is the frozen clock all service tests run against.
var testNow = time.Date(2030, 7, 1, 12, 0, 0, 0, time.UTC)

type fakeCalendar struct {
	mu      sync.Mutex
	nextID  int
	created []string
	updated []string
	deleted []string
	events  []calendar.Event

	createErr error
	deleteErr error
	listErr   error
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, rec *models.LiveBooking) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	f.created = append(f.created, rec.Booking.ID)
	return fmt.Sprintf("evt-%d", f.nextID), nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, eventID string, rec *models.LiveBooking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, eventID)
	return nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, eventID)
	return nil
}

func (f *fakeCalendar) ListEvents(ctx context.Context) ([]calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]calendar.Event(nil), f.events...), nil
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
}

func (f *fakeMailer) Send(to, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, to)
	return nil
}

func serviceMappings() *config.FieldMappings {
	return &config.FieldMappings{
		GroupTypes: map[string]config.GroupType{
			"chelmsford_district": {Prefix: "CHD"},
			"school":              {Prefix: "SCH"},
		},
		KeyMapping: config.KeyMapping{
			Leader: map[string]string{
				"name":  "name_of_lead_person",
				"email": "email_address",
				"phone": "mobile_number_for_lead_person",
			},
			Booking: map[string]string{
				"group_name": "your_scout_group",
				"group_size": "number_of_people",
			},
		},
		BookableFacilities: []string{"Top", "Bottom", "Trees"},
		Tariff: config.Tariff{
			PerPerson:   map[string]int64{"day": 350, "evening": 250, "overnight": 750},
			PerFacility: 1500,
		},
		DefaultGroupType: "chelmsford_district",
	}
}

type testEnv struct {
	svc    *DefaultBookingService
	cal    *fakeCalendar
	mailer *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	store := database.NewStore(
		filepath.Join(dir, "bookings.json"),
		filepath.Join(dir, "archive.json"),
		3,
		serviceMappings(),
		time.UTC,
	)

	cal := &fakeCalendar{}
	mailer := &fakeMailer{}
	notifier := notification.NewDefaultNotificationService(mailer, true, "Testsite")
	notifier.Now = func() time.Time { return testNow }

	svc, err := NewDefaultBookingService(store, DefaultTransitions(), serviceMappings(), cal, notifier, 90)
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow }

	return &testEnv{svc: svc, cal: cal, mailer: mailer}
}

// seed appends a record directly to the live aggregate.
func (e *testEnv) seed(id string, status models.Status, arriving, departing time.Time, cost int64) *models.LiveBooking {
	rec := models.LiveBooking{
		Booking: models.BookingData{
			ID:               id,
			OriginalSheetMD5: "md5-" + id,
			GroupType:        "chelmsford_district",
			GroupName:        "1st Testers",
			GroupSize:        10,
			EventType:        models.DeriveEventType(arriving, departing),
			Facilities:       []string{"Top"},
			Submitted:        arriving.AddDate(0, -1, 0),
			Arriving:         arriving,
			Departing:        departing,
		},
		Leader: models.LeaderData{
			Name:  "Alex Leader",
			Email: "alex@example.org",
			Phone: "07000000000",
		},
		Tracking: models.TrackingData{Status: status, CostEstimate: cost},
	}
	e.svc.live.Items = append(e.svc.live.Items, rec)
	return &e.svc.live.Items[len(e.svc.live.Items)-1]
}

func futureStay() (time.Time, time.Time) {
	arriving := testNow.AddDate(0, 1, 0)
	return arriving, arriving.Add(4 * time.Hour)
}

func pastStay(daysAgo int) (time.Time, time.Time) {
	departing := testNow.AddDate(0, 0, -daysAgo)
	return departing.Add(-4 * time.Hour), departing
}

func TestChangeStatusTransitionMatrix(t *testing.T) {
	tests := []struct {
		from    models.Status
		to      models.Status
		allowed bool
	}{
		{models.StatusNew, models.StatusPending, true},
		{models.StatusNew, models.StatusConfirmed, true},
		{models.StatusNew, models.StatusCancelled, true},
		{models.StatusNew, models.StatusInvoice, false},
		{models.StatusNew, models.StatusCompleted, false},
		{models.StatusPending, models.StatusConfirmed, true},
		{models.StatusPending, models.StatusCancelled, true},
		{models.StatusPending, models.StatusNew, false},
		{models.StatusConfirmed, models.StatusCancelled, true},
		{models.StatusConfirmed, models.StatusCompleted, false},
		{models.StatusInvoice, models.StatusCompleted, true},
		{models.StatusInvoice, models.StatusCancelled, false},
		{models.StatusCompleted, models.StatusArchived, false},
		{models.StatusArchived, models.StatusNew, false},
		{models.StatusCancelled, models.StatusNew, true},
		{models.StatusCancelled, models.StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s to %s", tt.from, tt.to), func(t *testing.T) {
			env := newTestEnv(t)
			arriving, departing := futureStay()
			env.seed("CHD-2030-0001", tt.from, arriving, departing, 0)

			_, err := env.svc.ChangeStatus(context.Background(), "CHD-2030-0001", tt.to, "because")
			if tt.allowed {
				assert.NoError(t, err)
				rec, _ := env.svc.Get("CHD-2030-0001")
				assert.Equal(t, tt.to, rec.Tracking.Status)
			} else {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				rec, _ := env.svc.Get("CHD-2030-0001")
				assert.Equal(t, tt.from, rec.Tracking.Status)
			}
		})
	}
}

func TestChangeStatusUnknownBooking(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.ChangeStatus(context.Background(), "CHD-2030-9999", models.StatusConfirmed, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChangeStatusResurrectionGuard(t *testing.T) {
	env := newTestEnv(t)
	arriving, departing := pastStay(5)
	env.seed("CHD-2030-0001", models.StatusCancelled, arriving, departing, 0)

	_, err := env.svc.ChangeStatus(context.Background(), "CHD-2030-0001", models.StatusNew, "")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "resurrect")

	future, futureDep := futureStay()
	env.seed("CHD-2030-0002", models.StatusCancelled, future, futureDep, 0)
	_, err = env.svc.ChangeStatus(context.Background(), "CHD-2030-0002", models.StatusNew, "")
	assert.NoError(t, err)
}

func TestChangeStatusRequiredDescriptions(t *testing.T) {
	for _, status := range []models.Status{models.StatusCancelled, models.StatusPending} {
		t.Run(string(status), func(t *testing.T) {
			env := newTestEnv(t)
			arriving, departing := futureStay()
			env.seed("CHD-2030-0001", models.StatusNew, arriving, departing, 0)

			_, err := env.svc.ChangeStatus(context.Background(), "CHD-2030-0001", status, "   ")
			require.Error(t, err)
			assert.True(t, IsValidation(err))

			_, err = env.svc.ChangeStatus(context.Background(), "CHD-2030-0001", status, "a real reason")
			assert.NoError(t, err)
		})
	}
}

func TestConfirmCreatesEventAndEmails(t *testing.T) {
	env := newTestEnv(t)
	arriving, departing := futureStay()
	env.seed("CHD-2030-0001", models.StatusNew, arriving, departing, 0)

	warnings, err := env.svc.ChangeStatus(context.Background(), "CHD-2030-0001", models.StatusConfirmed, "")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	rec, err := env.svc.Get("CHD-2030-0001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, rec.Tracking.Status)
	assert.Equal(t, []string{"CHD-2030-0001"}, env.cal.created)
	assert.Equal(t, "evt-1", rec.Tracking.GoogleCalendarID)
	assert.Equal(t, []string{"alex@example.org"}, env.mailer.sent)
	require.NotNil(t, rec.Tracking.ConfirmEmailSent)
	assert.True(t, rec.Tracking.ConfirmEmailSent.Equal(testNow))
	assert.Contains(t, rec.Tracking.Notes, "Status changed [New] > [Confirmed]")
}

func TestCancelRemovesEventAndStampsReason(t *testing.T) {
	env := newTestEnv(t)
	arriving, departing := futureStay()
	rec := env.seed("CHD-2030-0001", models.StatusConfirmed, arriving, departing, 0)
	rec.Tracking.GoogleCalendarID = "evt-77"

	warnings, err := env.svc.ChangeStatus(context.Background(), "CHD-2030-0001", models.StatusCancelled, "weather")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	got, _ := env.svc.Get("CHD-2030-0001")
	assert.Equal(t, "weather", got.Tracking.CancelReason)
	assert.Equal(t, []string{"evt-77"}, env.cal.deleted)
	assert.Empty(t, got.Tracking.GoogleCalendarID)
	require.NotNil(t, got.Tracking.CancelEmailSent)
	assert.Contains(t, got.Tracking.Notes, "Cancel Reason: weather")
}

func TestCollaboratorFailuresBecomeWarnings(t *testing.T) {
	env := newTestEnv(t)
	env.cal.createErr = fmt.Errorf("calendar down")
	env.mailer.sendErr = fmt.Errorf("smtp down")
	arriving, departing := futureStay()
	env.seed("CHD-2030-0001", models.StatusNew, arriving, departing, 0)

	warnings, err := env.svc.ChangeStatus(context.Background(), "CHD-2030-0001", models.StatusConfirmed, "")
	require.NoError(t, err)
	assert.Len(t, warnings, 2)

	// The local transition committed despite both failures, and the
	// delivery-attempt stamp is set regardless.
	rec, _ := env.svc.Get("CHD-2030-0001")
	assert.Equal(t, models.StatusConfirmed, rec.Tracking.Status)
	assert.NotNil(t, rec.Tracking.ConfirmEmailSent)
}

func testRow(group string) sheets.Row {
	return sheets.Row{
		"timestamp":                     "01/05/2030 09:00:00",
		"arrival_date_time":             "21/06/2030 10:00:00",
		"departure_time":                "14:00:00",
		"campsite":                      "Top",
		"your_scout_group":              group,
		"number_of_people":              "10",
		"name_of_lead_person":           "Alex Leader",
		"email_address":                 "alex@example.org",
		"mobile_number_for_lead_person": "07000000000",
	}
}

func testSheetResult(rows ...sheets.Row) *sheets.Result {
	return &sheets.Result{
		Updated: testNow,
		Sheets:  []sheets.Sheet{{Name: "2030", Rows: rows}},
	}
}

func TestAddNewDataDedup(t *testing.T) {
	env := newTestEnv(t)
	result := testSheetResult(testRow("1st Testers"))

	added, err := env.svc.AddNewData(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	added, err = env.svc.AddNewData(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	assert.Len(t, env.svc.List(ListFilter{}), 1)
	assert.Equal(t, 2, env.svc.live.NextIdx)
}

func TestAddNewDataRecordShape(t *testing.T) {
	env := newTestEnv(t)
	row := testRow("1st Testers")
	row["campsite"] = "Top + Marquee"

	added, err := env.svc.AddNewData(context.Background(), testSheetResult(row))
	require.NoError(t, err)
	require.Equal(t, 1, added)

	recs := env.svc.List(ListFilter{})
	require.Len(t, recs, 1)
	rec := recs[0]

	assert.Equal(t, "CHD-2030-0001", rec.Booking.ID)
	assert.Equal(t, models.StatusNew, rec.Tracking.Status)
	assert.Equal(t, "1st Testers", rec.Booking.GroupName)
	assert.Equal(t, 10, rec.Booking.GroupSize)
	assert.Equal(t, models.EventTypeDay, rec.Booking.EventType)
	assert.Equal(t, []string{"Top"}, rec.Booking.Facilities)
	assert.Equal(t, "Marquee", rec.Tracking.BookersComment)
	assert.Equal(t, int64(10*350+1500), rec.Tracking.CostEstimate)
	assert.Equal(t, "Alex Leader", rec.Leader.Name)
	assert.Contains(t, rec.Tracking.Notes, "Pulled from sheets")
	assert.Equal(t, 21, rec.Booking.Arriving.Day())
	assert.Equal(t, 14, rec.Booking.Departing.Hour())
}

func TestAddNewDataSkipsMalformedRows(t *testing.T) {
	env := newTestEnv(t)

	bad := testRow("Broken Group")
	bad["arrival_date_time"] = "not a date"
	good := testRow("2nd Testers")

	added, err := env.svc.AddNewData(context.Background(), testSheetResult(bad, good))
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	recs := env.svc.List(ListFilter{})
	require.Len(t, recs, 1)
	assert.Equal(t, "2nd Testers", recs[0].Booking.GroupName)
}

func TestAddNewDataGroupTypePrecedence(t *testing.T) {
	env := newTestEnv(t)

	row := testRow("School Group")
	row["group_type"] = "school"

	added, err := env.svc.AddNewData(context.Background(), testSheetResult(row))
	require.NoError(t, err)
	require.Equal(t, 1, added)
	recs := env.svc.List(ListFilter{})
	assert.Equal(t, "SCH-2030-0001", recs[0].Booking.ID)
	assert.Equal(t, "school", recs[0].Booking.GroupType)
}

func TestAutoUpdateStatuses(t *testing.T) {
	env := newTestEnv(t)

	depArr, depDep := pastStay(1)
	env.seed("CHD-2030-0001", models.StatusConfirmed, depArr, depDep, 5000)
	env.seed("CHD-2030-0002", models.StatusConfirmed, depArr, depDep, 0)
	futArr, futDep := futureStay()
	env.seed("CHD-2030-0003", models.StatusConfirmed, futArr, futDep, 5000)
	env.seed("CHD-2030-0004", models.StatusNew, depArr, depDep, 5000)

	changed, err := env.svc.AutoUpdateStatuses(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"CHD-2030-0001", "CHD-2030-0002"}, changed)

	owed, _ := env.svc.Get("CHD-2030-0001")
	assert.Equal(t, models.StatusInvoice, owed.Tracking.Status)
	assert.Contains(t, owed.Tracking.Notes, "Auto Status Change: [Confirmed] > [Invoice]")

	settled, _ := env.svc.Get("CHD-2030-0002")
	assert.Equal(t, models.StatusCompleted, settled.Tracking.Status)

	future, _ := env.svc.Get("CHD-2030-0003")
	assert.Equal(t, models.StatusConfirmed, future.Tracking.Status)

	newRec, _ := env.svc.Get("CHD-2030-0004")
	assert.Equal(t, models.StatusNew, newRec.Tracking.Status)
}

func TestArchiveOldBookings(t *testing.T) {
	env := newTestEnv(t)

	oldArr, oldDep := pastStay(91)
	rec := env.seed("CHD-2030-0001", models.StatusCompleted, oldArr, oldDep, 0)
	rec.Tracking.GoogleCalendarID = "evt-55"

	recentArr, recentDep := pastStay(10)
	env.seed("CHD-2030-0002", models.StatusCompleted, recentArr, recentDep, 0)
	env.seed("CHD-2030-0003", models.StatusInvoice, oldArr, oldDep, 5000)

	moved, warnings, err := env.svc.ArchiveOldBookings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.Empty(t, warnings)

	// The expired Completed booking left the live set and its event was
	// removed; only booking facts survive in the archive.
	_, err = env.svc.Get("CHD-2030-0001")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"evt-55"}, env.cal.deleted)

	archive := env.svc.ArchiveList()
	require.Len(t, archive.Items, 1)
	assert.Equal(t, "CHD-2030-0001", archive.Items[0].ID)

	// Still-retained and non-Completed bookings stay live.
	assert.Len(t, env.svc.List(ListFilter{}), 2)

	// Re-running the sweep moves nothing further.
	moved, _, err = env.svc.ArchiveOldBookings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, moved)
}

func TestArchivedHashStillBlocksReingestion(t *testing.T) {
	env := newTestEnv(t)
	result := testSheetResult(testRow("1st Testers"))

	added, err := env.svc.AddNewData(context.Background(), result)
	require.NoError(t, err)
	require.Equal(t, 1, added)

	// Complete the booking and age it out into the archive.
	rec := env.svc.findByID("CHD-2030-0001")
	require.NotNil(t, rec)
	rec.Tracking.Status = models.StatusCompleted
	rec.Booking.Arriving = testNow.AddDate(0, 0, -100)
	rec.Booking.Departing = testNow.AddDate(0, 0, -99)

	moved, _, err := env.svc.ArchiveOldBookings(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, moved)

	// The same row must not come back as a new booking.
	added, err = env.svc.AddNewData(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
}

func TestModifyFields(t *testing.T) {
	env := newTestEnv(t)
	arriving, departing := futureStay()
	env.seed("CHD-2030-0001", models.StatusConfirmed, arriving, departing, 0)

	changed, warnings, err := env.svc.ModifyFields(context.Background(), "CHD-2030-0001", map[string]map[string]any{
		"booking": {"group_size": 15},
		"leader":  {"phone": "07111111111"},
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, warnings)

	rec, _ := env.svc.Get("CHD-2030-0001")
	assert.Equal(t, 15, rec.Booking.GroupSize)
	assert.Equal(t, "07111111111", rec.Leader.Phone)
	assert.Contains(t, rec.Tracking.Notes, "group_size changed from [10] to [15]")
	assert.Contains(t, rec.Tracking.Notes, "phone changed from [07000000000] to [07111111111]")
	// No date change, so no email goes out.
	assert.Empty(t, env.mailer.sent)
}

func TestModifyFieldsDateChangeRenotifies(t *testing.T) {
	env := newTestEnv(t)
	arriving, departing := futureStay()
	env.seed("CHD-2030-0001", models.StatusConfirmed, arriving, departing, 0)

	newDeparting := departing.Add(2 * time.Hour)
	changed, _, err := env.svc.ModifyFields(context.Background(), "CHD-2030-0001", map[string]map[string]any{
		"booking": {"departing": newDeparting.Format(time.RFC3339)},
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"alex@example.org"}, env.mailer.sent)

	rec, _ := env.svc.Get("CHD-2030-0001")
	assert.True(t, rec.Booking.Departing.Equal(newDeparting))
	// Dates moved into the evening, so the derived type follows.
	assert.Equal(t, models.DeriveEventType(arriving, newDeparting), rec.Booking.EventType)
}

func TestModifyFieldsRejections(t *testing.T) {
	tests := []struct {
		name    string
		updates map[string]map[string]any
	}{
		{
			name:    "protected field",
			updates: map[string]map[string]any{"booking": {"id": "CHD-2030-9999"}},
		},
		{
			name:    "status through field update",
			updates: map[string]map[string]any{"tracking": {"status": "Confirmed"}},
		},
		{
			name:    "unknown section",
			updates: map[string]map[string]any{"payments": {"amount": 1}},
		},
		{
			name:    "unknown field",
			updates: map[string]map[string]any{"booking": {"colour": "red"}},
		},
		{
			name:    "invariant violation",
			updates: map[string]map[string]any{"booking": {"group_size": 0}},
		},
		{
			name: "partial failure rejects everything",
			updates: map[string]map[string]any{
				"leader":  {"phone": "07999999999"},
				"booking": {"group_size": -2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			arriving, departing := futureStay()
			env.seed("CHD-2030-0001", models.StatusNew, arriving, departing, 0)

			changed, _, err := env.svc.ModifyFields(context.Background(), "CHD-2030-0001", tt.updates)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.False(t, changed)

			rec, _ := env.svc.Get("CHD-2030-0001")
			assert.Equal(t, 10, rec.Booking.GroupSize)
			assert.Equal(t, "07000000000", rec.Leader.Phone)
			assert.Equal(t, 0, rec.Tracking.NoteCount())
		})
	}
}

func TestModifyFieldsNoChangeIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	arriving, departing := futureStay()
	env.seed("CHD-2030-0001", models.StatusNew, arriving, departing, 0)

	changed, warnings, err := env.svc.ModifyFields(context.Background(), "CHD-2030-0001", map[string]map[string]any{
		"booking": {"group_size": 10},
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, warnings)

	rec, _ := env.svc.Get("CHD-2030-0001")
	assert.Equal(t, 0, rec.Tracking.NoteCount())
}

func TestFixCalendarEventsDryRun(t *testing.T) {
	env := newTestEnv(t)
	arriving, departing := futureStay()

	env.seed("CHD-2030-0001", models.StatusConfirmed, arriving, departing, 0) // missing
	inSync := env.seed("CHD-2030-0002", models.StatusConfirmed, arriving, departing, 0)
	inSync.Tracking.GoogleCalendarID = "evt-b"
	stale := env.seed("CHD-2030-0003", models.StatusCancelled, arriving, departing, 0)
	stale.Tracking.GoogleCalendarID = "evt-c"

	env.cal.events = []calendar.Event{
		{ID: "evt-b", BookingID: "CHD-2030-0002"},
		{ID: "evt-c", BookingID: "CHD-2030-0003"},
		{ID: "evt-gone", BookingID: "CHD-2030-0099"}, // orphaned
		{ID: "evt-foreign"},                          // untagged, not ours
	}

	audit, err := env.svc.FixCalendarEvents(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, audit.Applied)
	assert.Equal(t, []string{"CHD-2030-0001"}, audit.Missing)
	assert.Equal(t, []string{"CHD-2030-0002"}, audit.InSync)
	assert.Equal(t, []string{"CHD-2030-0003"}, audit.Stale)
	assert.Equal(t, []string{"CHD-2030-0099"}, audit.Orphaned)

	// Dry run touches nothing.
	assert.Empty(t, env.cal.created)
	assert.Empty(t, env.cal.deleted)
}

func TestFixCalendarEventsApply(t *testing.T) {
	env := newTestEnv(t)
	arriving, departing := futureStay()

	env.seed("CHD-2030-0001", models.StatusConfirmed, arriving, departing, 0)
	drifted := env.seed("CHD-2030-0002", models.StatusConfirmed, arriving, departing, 0)
	drifted.Tracking.GoogleCalendarID = "evt-old"
	stale := env.seed("CHD-2030-0003", models.StatusCancelled, arriving, departing, 0)
	stale.Tracking.GoogleCalendarID = "evt-c"

	env.cal.events = []calendar.Event{
		{ID: "evt-b", BookingID: "CHD-2030-0002"},
		{ID: "evt-c", BookingID: "CHD-2030-0003"},
		{ID: "evt-gone", BookingID: "CHD-2030-0099"},
	}

	audit, err := env.svc.FixCalendarEvents(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, audit.Applied)

	// Missing event created and referenced.
	missing, _ := env.svc.Get("CHD-2030-0001")
	assert.NotEmpty(t, missing.Tracking.GoogleCalendarID)

	// Drifted reference repaired to the event that actually exists.
	repaired, _ := env.svc.Get("CHD-2030-0002")
	assert.Equal(t, "evt-b", repaired.Tracking.GoogleCalendarID)

	// Stale and orphaned events removed remotely.
	assert.ElementsMatch(t, []string{"evt-c", "evt-gone"}, env.cal.deleted)
	cleared, _ := env.svc.Get("CHD-2030-0003")
	assert.Empty(t, cleared.Tracking.GoogleCalendarID)
}

func TestFixCalendarEventsDuplicateTags(t *testing.T) {
	env := newTestEnv(t)
	arriving, departing := futureStay()

	rec := env.seed("CHD-2030-0001", models.StatusConfirmed, arriving, departing, 0)
	rec.Tracking.GoogleCalendarID = "evt-real"

	// Two remote events claim the same booking; only the referenced one
	// may survive.
	env.cal.events = []calendar.Event{
		{ID: "evt-dup", BookingID: "CHD-2030-0001"},
		{ID: "evt-real", BookingID: "CHD-2030-0001"},
	}

	audit, err := env.svc.FixCalendarEvents(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"CHD-2030-0001"}, audit.InSync)
	assert.Equal(t, []string{"CHD-2030-0001"}, audit.Orphaned)
	assert.Empty(t, env.cal.deleted)

	audit, err = env.svc.FixCalendarEvents(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"CHD-2030-0001"}, audit.Orphaned)
	assert.Equal(t, []string{"evt-dup"}, env.cal.deleted)

	kept, _ := env.svc.Get("CHD-2030-0001")
	assert.Equal(t, "evt-real", kept.Tracking.GoogleCalendarID)
}

func TestFixCalendarEventsListFailure(t *testing.T) {
	env := newTestEnv(t)
	env.cal.listErr = fmt.Errorf("api down")

	_, err := env.svc.FixCalendarEvents(context.Background(), true)
	assert.Error(t, err)
}

func TestListFilterAndSort(t *testing.T) {
	env := newTestEnv(t)

	june := time.Date(2030, 6, 10, 10, 0, 0, 0, time.UTC)
	july := time.Date(2030, 7, 10, 10, 0, 0, 0, time.UTC)

	env.seed("CHD-2030-0001", models.StatusConfirmed, july, july.Add(4*time.Hour), 0)
	env.seed("CHD-2030-0002", models.StatusNew, july, july.Add(4*time.Hour), 0)
	env.seed("CHD-2030-0003", models.StatusNew, june, june.Add(4*time.Hour), 0)

	all := env.svc.List(ListFilter{})
	require.Len(t, all, 3)
	// New before Confirmed, earlier arrival first within a status.
	assert.Equal(t, "CHD-2030-0003", all[0].Booking.ID)
	assert.Equal(t, "CHD-2030-0002", all[1].Booking.ID)
	assert.Equal(t, "CHD-2030-0001", all[2].Booking.ID)

	confirmed := env.svc.List(ListFilter{Status: models.StatusConfirmed})
	require.Len(t, confirmed, 1)
	assert.Equal(t, "CHD-2030-0001", confirmed[0].Booking.ID)

	overlap := env.svc.List(ListFilter{
		From: time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2030, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	require.Len(t, overlap, 1)
	assert.Equal(t, "CHD-2030-0003", overlap[0].Booking.ID)
}

func TestListReturnsCopies(t *testing.T) {
	env := newTestEnv(t)
	arriving, departing := futureStay()
	env.seed("CHD-2030-0001", models.StatusNew, arriving, departing, 0)

	recs := env.svc.List(ListFilter{})
	require.Len(t, recs, 1)
	recs[0].Booking.GroupName = "Mutated"
	recs[0].Booking.Facilities[0] = "Bottom"

	fresh, _ := env.svc.Get("CHD-2030-0001")
	assert.Equal(t, "1st Testers", fresh.Booking.GroupName)
	assert.Equal(t, "Top", fresh.Booking.Facilities[0])
}

func TestAge(t *testing.T) {
	env := newTestEnv(t)
	env.svc.live.Updated = time.Time{}
	assert.Equal(t, "NEVER", env.svc.Age())

	env.svc.live.Updated = testNow.Add(-90 * time.Second)
	assert.Equal(t, "1m 30s", env.svc.Age())
}

func TestReloadSurvivesRestart(t *testing.T) {
	env := newTestEnv(t)
	arriving, departing := futureStay()
	env.seed("CHD-2030-0001", models.StatusNew, arriving, departing, 0)

	_, err := env.svc.ChangeStatus(context.Background(), "CHD-2030-0001", models.StatusConfirmed, "")
	require.NoError(t, err)

	// A second service over the same files sees the committed state.
	notifier := notification.NewDefaultNotificationService(&fakeMailer{}, false, "Testsite")
	reloaded, err := NewDefaultBookingService(env.svc.store, DefaultTransitions(), serviceMappings(), &fakeCalendar{}, notifier, 90)
	require.NoError(t, err)

	rec, err := reloaded.Get("CHD-2030-0001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, rec.Tracking.Status)
}
