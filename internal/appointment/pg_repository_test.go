package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowdesk/booking-engine/internal/availability"
	"github.com/glowdesk/booking-engine/internal/events"
)

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgRepository(mock), mock
}

func apptRows(a Appointment) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "tenant_id", "client_id", "service_id", "staff_id",
		"start_time", "end_time", "status", "notes", "cancel_reason",
		"created_at", "updated_at",
	}).AddRow(
		a.ID, a.TenantID, a.ClientID, a.ServiceID, a.StaffID,
		a.StartTime, a.EndTime, a.Status, a.Notes, a.CancelReason,
		a.CreatedAt, a.UpdatedAt,
	)
}

func sampleAppointment() Appointment {
	start := time.Date(2026, 9, 16, 10, 0, 0, 0, time.UTC)
	return Appointment{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		ClientID:  uuid.New(),
		ServiceID: uuid.New(),
		StaffID:   uuid.New(),
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Status:    StatusScheduled,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestPgRepository_GetAppointment(t *testing.T) {
	repo, mock := newMockRepo(t)
	appt := sampleAppointment()

	mock.ExpectQuery(`SELECT .+ FROM appointments`).
		WithArgs(appt.TenantID, appt.ID).
		WillReturnRows(apptRows(appt))

	got, err := repo.GetAppointment(t.Context(), appt.TenantID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)
	assert.Equal(t, appt.StartTime, got.StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_GetAppointment_WrongTenant(t *testing.T) {
	repo, mock := newMockRepo(t)
	appt := sampleAppointment()
	otherTenant := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM appointments`).
		WithArgs(otherTenant, appt.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := repo.GetAppointment(t.Context(), otherTenant, appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_GetStaff_DecodesJSON(t *testing.T) {
	repo, mock := newMockRepo(t)
	tenantID, staffID := uuid.New(), uuid.New()
	specialty := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM staff`).
		WithArgs(tenantID, staffID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tenant_id", "name", "specialties", "working_hours", "created_at", "updated_at",
		}).AddRow(
			staffID, tenantID, "Alex",
			[]byte(`["`+specialty.String()+`"]`),
			[]byte(`{"monday":{"open":"09:00","close":"18:00"}}`),
			time.Now(), time.Now(),
		))

	got, err := repo.GetStaff(t.Context(), tenantID, staffID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{specialty}, got.Specialties)

	w, ok := got.WorkingHours.WindowOn(time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 9, w.Open.Hour())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_ListBusyIntervals(t *testing.T) {
	repo, mock := newMockRepo(t)
	tenantID, staffID := uuid.New(), uuid.New()
	day := time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC)
	window := availability.Interval{Start: day, End: day.AddDate(0, 0, 1)}

	mock.ExpectQuery(`SELECT start_time, end_time`).
		WithArgs(tenantID, staffID, activeStatusStrings, window.Start, window.End, (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"start_time", "end_time"}).
			AddRow(day.Add(10*time.Hour), day.Add(11*time.Hour)))

	busy, err := repo.ListBusyIntervals(t.Context(), tenantID, staffID, window, nil)
	require.NoError(t, err)
	require.Len(t, busy, 1)
	assert.Equal(t, day.Add(10*time.Hour), busy[0].Start)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_CreateAppointment(t *testing.T) {
	repo, mock := newMockRepo(t)
	appt := sampleAppointment()
	intent := events.NewNotifyIntent(appt.TenantID, appt.ID, events.NotifyConfirmation)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(appt.TenantID, appt.StaffID, activeStatusStrings, appt.StartTime, appt.EndTime, (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(appt.ID, appt.TenantID, appt.ClientID, appt.ServiceID, appt.StaffID,
			appt.StartTime, appt.EndTime, appt.Status, appt.Notes).
		WillReturnRows(apptRows(appt))
	mock.ExpectExec(`INSERT INTO intent_outbox`).
		WithArgs(intent.ID, intent.TenantID, intent.AppointmentID, intent.Channel, intent.Kind).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	created, err := repo.CreateAppointment(t.Context(), &appt, intent)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_CreateAppointment_Conflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	appt := sampleAppointment()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(appt.TenantID, appt.StaffID, activeStatusStrings, appt.StartTime, appt.EndTime, (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.CreateAppointment(t.Context(), &appt)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_CreateAppointment_ExclusionRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	appt := sampleAppointment()

	// A racing writer commits between our conflict check and our insert: the
	// exclusion constraint fires and must surface as a slot conflict.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(appt.TenantID, appt.StaffID, activeStatusStrings, appt.StartTime, appt.EndTime, (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(appt.ID, appt.TenantID, appt.ClientID, appt.ServiceID, appt.StaffID,
			appt.StartTime, appt.EndTime, appt.Status, appt.Notes).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"})
	mock.ExpectRollback()

	_, err := repo.CreateAppointment(t.Context(), &appt)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_RescheduleAppointment(t *testing.T) {
	repo, mock := newMockRepo(t)
	appt := sampleAppointment()
	newStart := appt.StartTime.Add(3 * time.Hour)
	newEnd := appt.EndTime.Add(3 * time.Hour)

	moved := appt
	moved.StartTime, moved.EndTime = newStart, newEnd

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FOR UPDATE`).
		WithArgs(appt.TenantID, appt.ID).
		WillReturnRows(apptRows(appt))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(appt.TenantID, appt.StaffID, activeStatusStrings, newStart, newEnd, &appt.ID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(appt.TenantID, appt.ID, newStart, newEnd, StatusScheduled).
		WillReturnRows(apptRows(moved))
	mock.ExpectCommit()

	got, err := repo.RescheduleAppointment(t.Context(), appt.TenantID, appt.ID, newStart, newEnd, StatusScheduled)
	require.NoError(t, err)
	assert.Equal(t, newStart, got.StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_RescheduleAppointment_Conflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	appt := sampleAppointment()
	newStart := appt.StartTime.Add(3 * time.Hour)
	newEnd := appt.EndTime.Add(3 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FOR UPDATE`).
		WithArgs(appt.TenantID, appt.ID).
		WillReturnRows(apptRows(appt))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(appt.TenantID, appt.StaffID, activeStatusStrings, newStart, newEnd, &appt.ID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.RescheduleAppointment(t.Context(), appt.TenantID, appt.ID, newStart, newEnd, StatusScheduled)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_UpdateStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	appt := sampleAppointment()
	reason := "client sick"

	canceled := appt
	canceled.Status = StatusCanceled
	canceled.CancelReason = &reason

	intent := events.NewNotifyIntent(appt.TenantID, appt.ID, events.NotifyCancellation)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(appt.TenantID, appt.ID, StatusScheduled, StatusCanceled, &reason).
		WillReturnRows(apptRows(canceled))
	mock.ExpectExec(`INSERT INTO intent_outbox`).
		WithArgs(intent.ID, intent.TenantID, intent.AppointmentID, intent.Channel, intent.Kind).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	got, err := repo.UpdateStatus(t.Context(), appt.TenantID, appt.ID, StatusScheduled, StatusCanceled, &reason, intent)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_UpdateStatus_CASMiss(t *testing.T) {
	repo, mock := newMockRepo(t)
	appt := sampleAppointment()

	// Status changed under us: the guarded UPDATE matches no row.
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(appt.TenantID, appt.ID, StatusScheduled, StatusCompleted, (*string)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(t.Context(), appt.TenantID, appt.ID, StatusScheduled, StatusCompleted, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_InsertEvent(t *testing.T) {
	repo, mock := newMockRepo(t)
	tenantID := uuid.New()
	apptID := uuid.New()
	at := time.Date(2026, 9, 16, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO event_logs`).
		WithArgs(tenantID, EventAppointmentCreated, &apptID, []byte(`{"ok":true}`), &at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertEvent(t.Context(), EventLog{
		TenantID:      tenantID,
		EventType:     EventAppointmentCreated,
		AppointmentID: &apptID,
		Payload:       []byte(`{"ok":true}`),
		CreatedAt:     at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
