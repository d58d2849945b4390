package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, start_at, appointment_type, case_type, status, notes, created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Start,
		&a.Type,
		&a.Case,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Start = a.Start.In(time.Local)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// translateWriteError maps database constraint violations onto the same
// ConflictError shape the local pre-checks produce, so a race lost against a
// concurrent booking surfaces to the caller unchanged in form.
func translateWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23P01": // exclusion_violation: doctor interval overlap
			return &ConflictError{Reason: ReasonDoctorOverlap}
		case "23505": // unique_violation: patient one-per-day index
			return &ConflictError{Reason: ReasonPatientDoubleBooking}
		}
	}
	return err
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FetchForDoctor(ctx context.Context, doctorID uuid.UUID, date *time.Time) ([]Appointment, error) {
	if date == nil {
		rows, err := r.pool.Query(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE doctor_id = $1
			ORDER BY start_at
		`, doctorID)
		if err != nil {
			return nil, err
		}
		return collectAppointments(rows)
	}

	dayStart, dayEnd := DayBounds(*date)
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND start_at >= $2
		  AND start_at < $3
		ORDER BY start_at
	`, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FetchForPatient(ctx context.Context, patientID uuid.UUID, date *time.Time) ([]Appointment, error) {
	if date == nil {
		rows, err := r.pool.Query(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE patient_id = $1
			ORDER BY start_at
		`, patientID)
		if err != nil {
			return nil, err
		}
		return collectAppointments(rows)
	}

	dayStart, dayEnd := DayBounds(*date)
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND start_at >= $2
		  AND start_at < $3
		ORDER BY start_at
	`, patientID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) Create(ctx context.Context, p CreateParams) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	patientID := uuid.Nil
	if p.PatientID != nil {
		patientID = *p.PatientID
	} else if p.Unregistered != nil {
		patientID = uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, phone, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, patientID, p.Unregistered.Name, p.Unregistered.Phone)
		if err != nil {
			return nil, fmt.Errorf("create unregistered patient: %w", err)
		}
	}

	id := uuid.New()
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, doctor_id, start_at, appointment_type, case_type, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', $7, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, patientID, p.DoctorID, p.Start, p.Type, p.Case, p.Notes)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, translateWriteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translateWriteError(err)
	}
	return appt, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateTime(ctx context.Context, id uuid.UUID, newStart time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_at = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, newStart)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, translateWriteError(err)
	}
	return appt, nil
}

func (r *PgRepository) FindStalePending(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'PENDING'
		  AND start_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}
