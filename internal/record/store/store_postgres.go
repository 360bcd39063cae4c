package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"clinic/internal/platform/postgres"
	"clinic/internal/record/models"
	"clinic/pkg/platform/sentinel"
)

// PostgresStore persists records in the patients table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectColumns = `patient_id, age, height, weight, recent_surgery, chronic_pain, bmi, recommendation, created_at`

func (s *PostgresStore) Insert(ctx context.Context, r *models.PatientRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patients (`+selectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.ID, r.Age, r.Height, r.Weight, r.RecentSurgery, r.ChronicPain, r.BMI, r.Recommendation, r.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.PatientRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM patients WHERE patient_id = $1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find patient: %w", err)
	}
	return r, nil
}

// ListAll streams rows from a fresh query on every range.
func (s *PostgresStore) ListAll(ctx context.Context) iter.Seq2[*models.PatientRecord, error] {
	return func(yield func(*models.PatientRecord, error) bool) {
		rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM patients`)
		if err != nil {
			yield(nil, fmt.Errorf("list patients: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			r, err := scanRecord(rows)
			if err != nil {
				yield(nil, fmt.Errorf("scan patient: %w", err))
				return
			}
			if !yield(r, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("list patients: %w", err))
		}
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.PatientRecord, error) {
	var (
		r   models.PatientRecord
		rec sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Age, &r.Height, &r.Weight, &r.RecentSurgery, &r.ChronicPain, &r.BMI, &rec, &r.CreatedAt); err != nil {
		return nil, err
	}
	if rec.Valid {
		r.Recommendation = &rec.String
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}
