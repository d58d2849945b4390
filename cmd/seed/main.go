package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentix/clinic-scheduling/internal/db"
	"github.com/dentix/clinic-scheduling/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctors, err := seedDoctors(context.Background(), pool, 12)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	patients, err := seedPatients(context.Background(), pool, 800)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, doctors, patients, 30); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"General Dentistry",
		"Orthodontics",
		"Endodontics",
		"Periodontics",
		"Oral Surgery",
		"Pediatric Dentistry",
		"Prosthodontics",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	const batchSize = 200

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			phone := gofakeit.Phone()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, phone, email, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, name, phone, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return ids, nil
}

// seedAppointments books each doctor a plausible mix of ACCEPTED appointments
// over the next days, spaced so the seeded calendar never violates the
// overlap invariant.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, doctors, patients []uuid.UUID, days int) error {
	log.Printf("seeding appointments over %d days", days)

	types := []schedule.AppointmentType{
		schedule.TypeDetartrage,
		schedule.TypeSoin,
		schedule.TypeExtraction,
		schedule.TypeBlanchiment,
		schedule.TypeOrthodontie,
	}
	cases := []schedule.CaseType{schedule.CaseNormal, schedule.CaseControl, schedule.CaseUrgent}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	patientCursor := 0
	for _, doctorID := range doctors {
		for day := 1; day <= days; day++ {
			date := time.Now().AddDate(0, 0, day)
			// Every other two-hour mark keeps effective intervals apart even
			// for the longest type plus buffer.
			for hour := 8; hour < 18; hour += 2 {
				if gofakeit.Number(0, 2) != 0 {
					continue
				}
				if patientCursor >= len(patients) {
					patientCursor = 0
				}
				patientID := patients[patientCursor]
				patientCursor++

				start := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, time.Local)
				apptType := types[gofakeit.Number(0, len(types)-1)]
				caseType := cases[gofakeit.Number(0, len(cases)-1)]

				_, err := tx.Exec(ctx, `
					INSERT INTO appointments
						(id, patient_id, doctor_id, start_at, appointment_type, case_type, status, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, 'ACCEPTED', now(), now())
				`, uuid.New(), patientID, doctorID, start, apptType, caseType)
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("appointments seeded")
	return nil
}
