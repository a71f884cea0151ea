package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"visitscribe/internal/domain"
)

// PostgresStore is the deployment backend, driven by pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPool connects and pings a pgx connection pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations applies all pending schema migrations.
func RunMigrations(databaseURL string, migrationsFS fs.FS) error {
	d, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// CreateConsultation registers a patient and a consultation for them,
// returning the new consultation id.
func (s *PostgresStore) CreateConsultation(ctx context.Context, patient domain.PatientContext) (string, error) {
	patientID := uuid.NewString()
	consultationID := uuid.NewString()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO patients (id, full_name, diagnosis, allergies, current_medications)
		VALUES ($1, $2, $3, $4, $5)
	`, patientID, patient.FullName, patient.Diagnosis, joinAllergies(patient.Allergies), patient.CurrentMedications)
	if err != nil {
		return "", fmt.Errorf("insert patient: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO consultations (id, patient_id, created_at)
		VALUES ($1, $2, now())
	`, consultationID, patientID)
	if err != nil {
		return "", fmt.Errorf("insert consultation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return consultationID, nil
}

func (s *PostgresStore) GetNote(ctx context.Context, consultationID string) (*domain.ClinicalNote, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT subjective, objective, assessment, plan
		FROM clinical_notes
		WHERE consultation_id = $1
	`, consultationID)

	var note domain.ClinicalNote
	if err := row.Scan(&note.Subjective, &note.Objective, &note.Assessment, &note.Plan); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan note: %w", err)
	}
	return &note, nil
}

func (s *PostgresStore) UpsertNote(ctx context.Context, consultationID string, note domain.ClinicalNote) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO clinical_notes (consultation_id, subjective, objective, assessment, plan, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (consultation_id) DO UPDATE SET
			subjective = excluded.subjective,
			objective = excluded.objective,
			assessment = excluded.assessment,
			plan = excluded.plan,
			updated_at = excluded.updated_at
	`, consultationID, note.Subjective, note.Objective, note.Assessment, note.Plan)
	if err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTranscript(ctx context.Context, consultationID string) (string, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT body FROM transcripts WHERE consultation_id = $1
	`, consultationID)

	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("scan transcript: %w", err)
	}
	return body, nil
}

func (s *PostgresStore) SetTranscript(ctx context.Context, consultationID string, text string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transcripts (consultation_id, body, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (consultation_id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`, consultationID, text)
	if err != nil {
		return fmt.Errorf("set transcript: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPatientContext(ctx context.Context, consultationID string) (*domain.PatientContext, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT p.full_name, p.diagnosis, p.allergies, p.current_medications
		FROM consultations c
		JOIN patients p ON p.id = c.patient_id
		WHERE c.id = $1
	`, consultationID)

	var patient domain.PatientContext
	var allergies string
	if err := row.Scan(&patient.FullName, &patient.Diagnosis, &allergies, &patient.CurrentMedications); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	patient.Allergies = splitAllergies(allergies)
	return &patient, nil
}
