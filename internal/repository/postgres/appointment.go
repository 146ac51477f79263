package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/internal/repository"
)

const appointmentSelect = `
	SELECT a.id, a.date, a.time, a.reason, a.status, a.notes,
		   a.is_archived, a.archived_from, a.created_at, a.updated_at,
		   d.id AS doctor_id, d.name AS doctor_name, d.email AS doctor_email,
		   d.specialization AS doctor_specialization,
		   p.id AS patient_id, p.name AS patient_name, p.email AS patient_email
	FROM appointments a
	JOIN users d ON d.id = a.doctor_id
	JOIN users p ON p.id = a.patient_id
`

// appointmentRow is the flat join result; toModel folds the user columns
// into resolved references.
type appointmentRow struct {
	ID           uuid.UUID                `db:"id"`
	Date         model.Date               `db:"date"`
	Time         model.ClockTime          `db:"time"`
	Reason       string                   `db:"reason"`
	Status       model.AppointmentStatus  `db:"status"`
	Notes        *string                  `db:"notes"`
	IsArchived   bool                     `db:"is_archived"`
	ArchivedFrom *model.AppointmentStatus `db:"archived_from"`
	CreatedAt    time.Time                `db:"created_at"`
	UpdatedAt    time.Time                `db:"updated_at"`

	DoctorID             uuid.UUID `db:"doctor_id"`
	DoctorName           string    `db:"doctor_name"`
	DoctorEmail          string    `db:"doctor_email"`
	DoctorSpecialization *string   `db:"doctor_specialization"`
	PatientID            uuid.UUID `db:"patient_id"`
	PatientName          string    `db:"patient_name"`
	PatientEmail         string    `db:"patient_email"`
}

func (row *appointmentRow) toModel() *model.Appointment {
	return &model.Appointment{
		Base: model.Base{ID: row.ID, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt},
		Doctor: model.ResolvedRef(model.UserSummary{
			ID:             row.DoctorID,
			Name:           row.DoctorName,
			Email:          row.DoctorEmail,
			Role:           model.RoleDoctor,
			Specialization: row.DoctorSpecialization,
		}),
		Patient: model.ResolvedRef(model.UserSummary{
			ID:    row.PatientID,
			Name:  row.PatientName,
			Email: row.PatientEmail,
			Role:  model.RolePatient,
		}),
		Date:         row.Date,
		Time:         row.Time,
		Reason:       row.Reason,
		Status:       row.Status,
		Notes:        row.Notes,
		IsArchived:   row.IsArchived,
		ArchivedFrom: row.ArchivedFrom,
	}
}

func toModels(rows []appointmentRow) []*model.Appointment {
	out := make([]*model.Appointment, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out
}

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

// Create relies on appointments_slot_holder_idx to reject a second holder of
// the same slot, so two concurrent inserts cannot both succeed.
func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	doctorID, err := uuid.Parse(appointment.Doctor.ID())
	if err != nil {
		return repository.ErrNotFound
	}
	patientID, err := uuid.Parse(appointment.Patient.ID())
	if err != nil {
		return repository.ErrNotFound
	}

	query := `
		INSERT INTO appointments (
			id, doctor_id, patient_id, date, time,
			reason, status, notes, is_archived,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $10)
	`
	appointment.ID = uuid.New()
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt

	_, err = r.db.ExecContext(ctx, query,
		appointment.ID,
		doctorID,
		patientID,
		appointment.Date,
		appointment.Time,
		appointment.Reason,
		appointment.Status,
		appointment.Notes,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", translate(err))
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var row appointmentRow
	if err := r.db.GetContext(ctx, &row, appointmentSelect+` WHERE a.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return row.toModel(), nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}

	query := appointmentSelect + ` WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters.DoctorID != uuid.Nil {
		query += fmt.Sprintf(" AND a.doctor_id = $%d", argCount)
		args = append(args, filters.DoctorID)
		argCount++
	}
	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND a.patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
		argCount++
	}
	if filters.From != "" {
		query += fmt.Sprintf(" AND a.date >= $%d", argCount)
		args = append(args, filters.From)
		argCount++
	}
	if filters.To != "" {
		query += fmt.Sprintf(" AND a.date <= $%d", argCount)
		args = append(args, filters.To)
		argCount++
	}
	if !filters.IncludeArchived {
		query += " AND a.is_archived = FALSE"
	}

	query += " ORDER BY a.date ASC, a.time ASC"

	var rows []appointmentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return toModels(rows), nil
}

func (r *appointmentRepository) ListForDoctorOnDate(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]*model.Appointment, error) {
	query := appointmentSelect + `
		WHERE a.doctor_id = $1 AND a.date = $2
		ORDER BY a.time ASC
	`
	var rows []appointmentRow
	if err := r.db.SelectContext(ctx, &rows, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("failed to get doctor appointments: %w", err)
	}
	return toModels(rows), nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = $1,
			is_archived = is_archived OR $1 = 'archived',
			archived_from = CASE WHEN $1 = 'archived' AND NOT is_archived THEN $2 ELSE archived_from END,
			updated_at = $3
		WHERE id = $4 AND status = $2
	`

	result, err := r.db.ExecContext(ctx, query, to, from, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", translate(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check appointment: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStatusChanged
}

func (r *appointmentRepository) UpdateDetails(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET reason = $1, notes = $2, updated_at = $3
		WHERE id = $4
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appointment.Reason,
		appointment.Notes,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}

	return nil
}
