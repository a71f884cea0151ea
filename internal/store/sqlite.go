package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"visitscribe/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS patients (
	id TEXT PRIMARY KEY,
	full_name TEXT NOT NULL,
	diagnosis TEXT NOT NULL DEFAULT '',
	allergies TEXT NOT NULL DEFAULT '',
	current_medications TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS consultations (
	id TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL REFERENCES patients(id),
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS clinical_notes (
	consultation_id TEXT PRIMARY KEY REFERENCES consultations(id),
	subjective TEXT NOT NULL DEFAULT '',
	objective TEXT NOT NULL DEFAULT '',
	assessment TEXT NOT NULL DEFAULT '',
	plan TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transcripts (
	consultation_id TEXT PRIMARY KEY REFERENCES consultations(id),
	body TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore is the single-host backend. The schema is created on open.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateConsultation registers a patient and a consultation for them,
// returning the new consultation id.
func (s *SQLiteStore) CreateConsultation(ctx context.Context, patient domain.PatientContext) (string, error) {
	patientID := uuid.NewString()
	consultationID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO patients (id, full_name, diagnosis, allergies, current_medications)
		VALUES (?, ?, ?, ?, ?)
	`, patientID, patient.FullName, patient.Diagnosis, joinAllergies(patient.Allergies), patient.CurrentMedications)
	if err != nil {
		return "", fmt.Errorf("insert patient: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO consultations (id, patient_id, created_at)
		VALUES (?, ?, ?)
	`, consultationID, patientID, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("insert consultation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return consultationID, nil
}

func (s *SQLiteStore) GetNote(ctx context.Context, consultationID string) (*domain.ClinicalNote, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT subjective, objective, assessment, plan
		FROM clinical_notes
		WHERE consultation_id = ?
	`, consultationID)

	var note domain.ClinicalNote
	if err := row.Scan(&note.Subjective, &note.Objective, &note.Assessment, &note.Plan); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan note: %w", err)
	}
	return &note, nil
}

func (s *SQLiteStore) UpsertNote(ctx context.Context, consultationID string, note domain.ClinicalNote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clinical_notes (consultation_id, subjective, objective, assessment, plan, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (consultation_id) DO UPDATE SET
			subjective = excluded.subjective,
			objective = excluded.objective,
			assessment = excluded.assessment,
			plan = excluded.plan,
			updated_at = excluded.updated_at
	`, consultationID, note.Subjective, note.Objective, note.Assessment, note.Plan, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTranscript(ctx context.Context, consultationID string) (string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT body FROM transcripts WHERE consultation_id = ?
	`, consultationID)

	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("scan transcript: %w", err)
	}
	return body, nil
}

func (s *SQLiteStore) SetTranscript(ctx context.Context, consultationID string, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (consultation_id, body, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (consultation_id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`, consultationID, text, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set transcript: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPatientContext(ctx context.Context, consultationID string) (*domain.PatientContext, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT p.full_name, p.diagnosis, p.allergies, p.current_medications
		FROM consultations c
		JOIN patients p ON p.id = c.patient_id
		WHERE c.id = ?
	`, consultationID)

	var patient domain.PatientContext
	var allergies string
	if err := row.Scan(&patient.FullName, &patient.Diagnosis, &allergies, &patient.CurrentMedications); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	patient.Allergies = splitAllergies(allergies)
	return &patient, nil
}

// Allergies are stored as one comma-separated column.

func joinAllergies(allergies []string) string {
	return strings.Join(allergies, ",")
}

func splitAllergies(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
