package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowdesk/booking-engine/internal/appointment"
	"github.com/glowdesk/booking-engine/internal/availability"
	"github.com/glowdesk/booking-engine/internal/events"
	"github.com/glowdesk/booking-engine/internal/policy"
)

// fakeRepo serves a single tenant with one client, one service, one staff
// member and an appointment map keyed by id.
type fakeRepo struct {
	tenantID     uuid.UUID
	client       appointment.Client
	service      appointment.ServiceDefinition
	staff        appointment.Staff
	appointments map[uuid.UUID]appointment.Appointment
	busy         []availability.Interval
	failing      bool
}

var errDown = appointment.ErrDependencyUnavailable

func (f *fakeRepo) GetClient(_ context.Context, tenantID, id uuid.UUID) (*appointment.Client, error) {
	if tenantID != f.tenantID || id != f.client.ID {
		return nil, appointment.ErrClientNotFound
	}
	c := f.client
	return &c, nil
}

func (f *fakeRepo) GetService(_ context.Context, tenantID, id uuid.UUID) (*appointment.ServiceDefinition, error) {
	if f.failing {
		return nil, errDown
	}
	if tenantID != f.tenantID || id != f.service.ID {
		return nil, appointment.ErrServiceNotFound
	}
	s := f.service
	return &s, nil
}

func (f *fakeRepo) GetStaff(_ context.Context, tenantID, id uuid.UUID) (*appointment.Staff, error) {
	if tenantID != f.tenantID || id != f.staff.ID {
		return nil, appointment.ErrStaffNotFound
	}
	s := f.staff
	return &s, nil
}

func (f *fakeRepo) ListStaff(_ context.Context, tenantID uuid.UUID) ([]appointment.Staff, error) {
	if tenantID != f.tenantID {
		return nil, nil
	}
	return []appointment.Staff{f.staff}, nil
}

func (f *fakeRepo) GetAppointment(_ context.Context, tenantID, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok || a.TenantID != tenantID {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (f *fakeRepo) ListBusyIntervals(_ context.Context, _, _ uuid.UUID, _ availability.Interval, _ *uuid.UUID) ([]availability.Interval, error) {
	return f.busy, nil
}

func (f *fakeRepo) CreateAppointment(_ context.Context, appt *appointment.Appointment, _ ...events.Intent) (*appointment.Appointment, error) {
	iv := appt.Interval()
	if iv.OverlapsAny(f.busy) {
		return nil, appointment.ErrSlotUnavailable
	}
	stored := *appt
	f.appointments[stored.ID] = stored
	return &stored, nil
}

func (f *fakeRepo) RescheduleAppointment(_ context.Context, tenantID, id uuid.UUID, newStart, newEnd time.Time, newStatus appointment.Status, _ ...events.Intent) (*appointment.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok || a.TenantID != tenantID {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.StartTime, a.EndTime, a.Status = newStart, newEnd, newStatus
	f.appointments[id] = a
	return &a, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, tenantID, id uuid.UUID, from, to appointment.Status, cancelReason *string, _ ...events.Intent) (*appointment.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok || a.TenantID != tenantID {
		return nil, appointment.ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, appointment.ErrInvalidTransition
	}
	a.Status = to
	if cancelReason != nil {
		a.CancelReason = cancelReason
	}
	f.appointments[id] = a
	return &a, nil
}

func (f *fakeRepo) InsertEvent(context.Context, appointment.EventLog) error { return nil }

type noopLocker struct{}

func (noopLocker) WithStaffLock(ctx context.Context, _, _ uuid.UUID, fn func(context.Context) error) error {
	return fn(ctx)
}

type apiFixture struct {
	handler http.Handler
	repo    *fakeRepo
	now     time.Time
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	tenantID := uuid.New()
	repo := &fakeRepo{
		tenantID: tenantID,
		client:   appointment.Client{ID: uuid.New(), TenantID: tenantID, Name: "Dana"},
		service:  appointment.ServiceDefinition{ID: uuid.New(), TenantID: tenantID, Name: "Haircut", DurationMinutes: 60},
		staff: appointment.Staff{
			ID:       uuid.New(),
			TenantID: tenantID,
			Name:     "Alex",
			WorkingHours: availability.WeekSchedule{
				time.Monday:    {Open: "09:00", Close: "18:00"},
				time.Tuesday:   {Open: "09:00", Close: "18:00"},
				time.Wednesday: {Open: "09:00", Close: "18:00"},
				time.Thursday:  {Open: "09:00", Close: "18:00"},
				time.Friday:    {Open: "09:00", Close: "18:00"},
			},
		},
		appointments: map[uuid.UUID]appointment.Appointment{},
	}

	now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	svc := appointment.NewService(appointment.ServiceConfig{
		Repo:     repo,
		Locker:   noopLocker{},
		Policies: policy.NewStaticProvider(policy.Default(tenantID)),
		Now:      func() time.Time { return now },
	})

	handler := NewRouter(RouterConfig{
		Service: svc,
		Env:     "test",
		Version: "test",
	})

	return &apiFixture{handler: handler, repo: repo, now: now}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_CreateAppointment(t *testing.T) {
	f := newAPIFixture(t)

	body := `{
		"client_id": "` + f.repo.client.ID.String() + `",
		"service_id": "` + f.repo.service.ID.String() + `",
		"staff_id": "` + f.repo.staff.ID.String() + `",
		"start_time": "2026-09-16T10:00:00Z"
	}`
	rec := f.do(t, "POST", "/tenants/"+f.repo.tenantID.String()+"/appointments", body)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "scheduled", resp.Status)
	assert.Equal(t, time.Date(2026, 9, 16, 11, 0, 0, 0, time.UTC), resp.EndTime)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAPI_CreateAppointment_Conflict(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.busy = []availability.Interval{{
		Start: time.Date(2026, 9, 16, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 16, 11, 0, 0, 0, time.UTC),
	}}

	body := `{
		"client_id": "` + f.repo.client.ID.String() + `",
		"service_id": "` + f.repo.service.ID.String() + `",
		"staff_id": "` + f.repo.staff.ID.String() + `",
		"start_time": "2026-09-16T10:30:00Z"
	}`
	rec := f.do(t, "POST", "/tenants/"+f.repo.tenantID.String()+"/appointments", body)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "slot_unavailable", resp.Error)
}

func TestAPI_CreateAppointment_BadInput(t *testing.T) {
	f := newAPIFixture(t)
	base := "/tenants/" + f.repo.tenantID.String() + "/appointments"

	rec := f.do(t, "POST", base, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "POST", base, `{"client_id":"nope","service_id":"x","staff_id":"y","start_time":"z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "POST", "/tenants/not-a-uuid/appointments", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_CreateAppointment_DependencyDown(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.failing = true

	body := `{
		"client_id": "` + f.repo.client.ID.String() + `",
		"service_id": "` + f.repo.service.ID.String() + `",
		"staff_id": "` + f.repo.staff.ID.String() + `",
		"start_time": "2026-09-16T10:00:00Z"
	}`
	rec := f.do(t, "POST", "/tenants/"+f.repo.tenantID.String()+"/appointments", body)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPI_GetAppointment_NotFound(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "GET", "/tenants/"+f.repo.tenantID.String()+"/appointments/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Error)
}

func TestAPI_CancelAppointment_PolicyViolation(t *testing.T) {
	f := newAPIFixture(t)
	id := uuid.New()
	// 30 minutes out: inside the default 2h cancellation notice.
	f.repo.appointments[id] = appointment.Appointment{
		ID:        id,
		TenantID:  f.repo.tenantID,
		StaffID:   f.repo.staff.ID,
		StartTime: f.now.Add(30 * time.Minute),
		EndTime:   f.now.Add(90 * time.Minute),
		Status:    appointment.StatusScheduled,
	}

	rec := f.do(t, "POST", "/tenants/"+f.repo.tenantID.String()+"/appointments/"+id.String()+"/cancel",
		`{"reason":"too late"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "policy_violation", resp.Error)
}

func TestAPI_CancelAppointment_ReasonRequired(t *testing.T) {
	f := newAPIFixture(t)
	id := uuid.New()
	f.repo.appointments[id] = appointment.Appointment{
		ID:        id,
		TenantID:  f.repo.tenantID,
		StaffID:   f.repo.staff.ID,
		StartTime: f.now.Add(48 * time.Hour),
		EndTime:   f.now.Add(49 * time.Hour),
		Status:    appointment.StatusScheduled,
	}

	rec := f.do(t, "POST", "/tenants/"+f.repo.tenantID.String()+"/appointments/"+id.String()+"/cancel",
		`{"reason":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ConfirmThenConfirmAgain(t *testing.T) {
	f := newAPIFixture(t)
	id := uuid.New()
	f.repo.appointments[id] = appointment.Appointment{
		ID:        id,
		TenantID:  f.repo.tenantID,
		StaffID:   f.repo.staff.ID,
		StartTime: f.now.Add(48 * time.Hour),
		EndTime:   f.now.Add(49 * time.Hour),
		Status:    appointment.StatusScheduled,
	}
	path := "/tenants/" + f.repo.tenantID.String() + "/appointments/" + id.String() + "/confirm"

	rec := f.do(t, "POST", path, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "confirmed", resp.Status)

	rec = f.do(t, "POST", path, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "invalid_status_transition", errResp.Error)
}

func TestAPI_GetAvailability(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.busy = []availability.Interval{{
		Start: time.Date(2026, 9, 16, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 16, 11, 0, 0, 0, time.UTC),
	}}

	rec := f.do(t, "GET", "/tenants/"+f.repo.tenantID.String()+"/availability?service_id="+
		f.repo.service.ID.String()+"&staff_id="+f.repo.staff.ID.String()+"&date=2026-09-16", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-09-16", resp.Date)
	require.Len(t, resp.Slots, 17)

	unavailable := 0
	for _, s := range resp.Slots {
		if !s.Available {
			unavailable++
		}
	}
	assert.Equal(t, 3, unavailable, "09:30, 10:00 and 10:30 blocked by the booking")
}

func TestAPI_GetAvailability_AnyStaff(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "GET", "/tenants/"+f.repo.tenantID.String()+"/availability?service_id="+
		f.repo.service.ID.String()+"&staff_id=any&date=2026-09-16", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Slots, 17)
}

func TestAPI_GetAvailability_TenantTimezone(t *testing.T) {
	f := newAPIFixture(t)
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	pol := policy.Default(f.repo.tenantID)
	pol.Timezone = "America/New_York"
	svc := appointment.NewService(appointment.ServiceConfig{
		Repo:     f.repo,
		Locker:   noopLocker{},
		Policies: policy.NewStaticProvider(pol),
		Now:      func() time.Time { return f.now },
	})
	handler := NewRouter(RouterConfig{Service: svc, Env: "test", Version: "test"})

	req := httptest.NewRequest("GET", "/tenants/"+f.repo.tenantID.String()+"/availability?service_id="+
		f.repo.service.ID.String()+"&staff_id="+f.repo.staff.ID.String()+"&date=2026-09-16", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-09-16", resp.Date)
	require.NotEmpty(t, resp.Slots)

	first := resp.Slots[0].Time.In(loc)
	assert.Equal(t, 16, first.Day(), "slots belong to the requested day in tenant time")
	assert.Equal(t, 9, first.Hour())
}

func TestAPI_GetAvailability_BadDate(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "GET", "/tenants/"+f.repo.tenantID.String()+"/availability?service_id="+
		f.repo.service.ID.String()+"&date=16-09-2026", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
