package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/model"
)

const jobColumns = `id, user_id, audio_file_key, duration_seconds, duration_text, usage_minutes,
	status, transcription_file_key, transcription_text, error, quota_deducted,
	priority, submission_index, created_at, updated_at`

// JobStore persists transcription job records. Committed jobs are never
// deleted; only an admission that fails to enqueue is rolled back.
type JobStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewJobStore(db *sql.DB, logger *zap.Logger) *JobStore {
	return &JobStore{db: db, logger: logger}
}

// CreateAndDeduct inserts the job record and pre-deducts its usage minutes
// from the ledger as one transaction. The increment is guarded, so two
// racing admissions that both passed CanAdmit cannot jointly over-commit
// the account; the loser gets ErrQuotaExceeded and nothing persists.
func (s *JobStore) CreateAndDeduct(ctx context.Context, job *model.TranscriptionJob) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin admission transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transcription_jobs
		 (id, user_id, audio_file_key, duration_seconds, duration_text, usage_minutes,
		  status, quota_deducted, priority, submission_index)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9)`,
		job.ID, job.UserID, job.AudioFileKey, job.DurationSeconds, job.DurationText,
		job.UsageMinutes, job.Status, job.Priority, job.SubmissionIndex)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: %s", model.ErrDuplicateJob, job.AudioFileKey)
		}
		return fmt.Errorf("failed to insert job: %w", err)
	}

	if err := incrementUsage(ctx, tx, job.UserID, job.UsageMinutes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit admission: %w", err)
	}
	return nil
}

// RollbackAdmission undoes a committed admission whose enqueue failed: the
// job row is removed and the pre-deducted minutes are returned. The status
// guard keeps a job a worker already picked up out of reach.
func (s *JobStore) RollbackAdmission(ctx context.Context, job *model.TranscriptionJob) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rollback transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM transcription_jobs WHERE id = $1 AND status = $2`,
		job.ID, model.JobStatusQueued)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return nil
	}

	if err := decrementUsage(ctx, tx, job.UserID, job.UsageMinutes); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID returns the job, or ErrJobNotFound.
func (s *JobStore) GetByID(ctx context.Context, jobID string) (*model.TranscriptionJob, error) {
	return scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM transcription_jobs WHERE id = $1`, jobID))
}

// ExistsByFileKey reports whether any job was ever created for the key.
func (s *JobStore) ExistsByFileKey(ctx context.Context, audioFileKey string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transcription_jobs WHERE audio_file_key = $1)`,
		audioFileKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check job existence: %w", err)
	}
	return exists, nil
}

// SetStatus transitions the job's lifecycle status.
func (s *JobStore) SetStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transcription_jobs SET status = $2, updated_at = now() WHERE id = $1`,
		jobID, status)
	if err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}
	return requireRow(res)
}

// SetCompleted marks the job COMPLETED and stores the transcript.
func (s *JobStore) SetCompleted(ctx context.Context, jobID, transcriptionText string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transcription_jobs
		 SET status = $2, transcription_text = $3, updated_at = now()
		 WHERE id = $1`,
		jobID, model.JobStatusCompleted, transcriptionText)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return requireRow(res)
}

// SetFailed marks the job FAILED with the terminal error message.
func (s *JobStore) SetFailed(ctx context.Context, jobID, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transcription_jobs
		 SET status = $2, error = $3, updated_at = now()
		 WHERE id = $1`,
		jobID, model.JobStatusFailed, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return requireRow(res)
}

// ClearQuotaDeducted atomically flips quota_deducted from true to false and
// reports whether this caller won the flip. Duplicate terminal-failure
// deliveries lose here and must not touch the ledger.
func (s *JobStore) ClearQuotaDeducted(ctx context.Context, jobID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transcription_jobs
		 SET quota_deducted = FALSE, updated_at = now()
		 WHERE id = $1 AND quota_deducted`,
		jobID)
	if err != nil {
		return false, fmt.Errorf("failed to clear quota flag: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return model.ErrJobNotFound
	}
	return nil
}

func scanJob(row *sql.Row) (*model.TranscriptionJob, error) {
	var job model.TranscriptionJob
	var fileKey, text, errMsg sql.NullString
	err := row.Scan(&job.ID, &job.UserID, &job.AudioFileKey, &job.DurationSeconds,
		&job.DurationText, &job.UsageMinutes, &job.Status, &fileKey, &text, &errMsg,
		&job.QuotaDeducted, &job.Priority, &job.SubmissionIndex,
		&job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	if fileKey.Valid {
		job.TranscriptionFileKey = &fileKey.String
	}
	if text.Valid {
		job.TranscriptionText = &text.String
	}
	if errMsg.Valid {
		job.Error = &errMsg.String
	}
	return &job, nil
}
