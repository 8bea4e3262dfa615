package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/voxscribe/api/internal/model"
)

// ErrorStore appends immutable error records for terminally failed jobs.
type ErrorStore struct {
	db *sql.DB
}

func NewErrorStore(db *sql.DB) *ErrorStore {
	return &ErrorStore{db: db}
}

// Insert appends one error record. Records are never updated or deleted.
func (s *ErrorStore) Insert(ctx context.Context, record *model.TranscriptionError) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcription_errors
		 (id, job_id, user_id, error_message, stack_trace, additional_data, unrecoverable, marked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.JobID, record.UserID, record.ErrorMessage,
		record.StackTrace, record.AdditionalData, record.Unrecoverable, record.MarkedAt)
	if err != nil {
		return fmt.Errorf("failed to insert error record: %w", err)
	}
	return nil
}

// ListByJob returns all error records for a job, oldest first.
func (s *ErrorStore) ListByJob(ctx context.Context, jobID string) ([]model.TranscriptionError, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, user_id, error_message, stack_trace, additional_data, unrecoverable, marked_at
		 FROM transcription_errors WHERE job_id = $1 ORDER BY marked_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list error records: %w", err)
	}
	defer rows.Close()

	var records []model.TranscriptionError
	for rows.Next() {
		var rec model.TranscriptionError
		var stack, data sql.NullString
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.UserID, &rec.ErrorMessage,
			&stack, &data, &rec.Unrecoverable, &rec.MarkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan error record: %w", err)
		}
		rec.StackTrace = stack.String
		rec.AdditionalData = data.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
