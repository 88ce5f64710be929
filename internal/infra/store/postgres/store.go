// Package postgres persists submissions and quality checks in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"repverse/internal/domain/marketplace"
	jsonx "repverse/internal/shared/json"
	"repverse/internal/shared/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	submissionsTable   = "work_submissions"
	qualityChecksTable = "quality_checks"
)

// Store is a pgxpool-backed marketplace.Store.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, errors.New("postgres store requires pool")
	}
	return &Store{pool: pool, logger: logging.NewComponentLogger("PostgresStore")}, nil
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id TEXT NOT NULL,
    job_id TEXT NOT NULL,
    freelancer_address TEXT NOT NULL,
    work TEXT NOT NULL,
    quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    quality_check_id TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    retry_count INTEGER NOT NULL DEFAULT 0,
    rejection_reason TEXT NOT NULL DEFAULT '',
    review_score DOUBLE PRECISION,
    fixable_score DOUBLE PRECISION,
    reassign_score DOUBLE PRECISION,
    submitted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (job_id, freelancer_address)
);`, submissionsTable),
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS quality_check_id TEXT NOT NULL DEFAULT '';`, submissionsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_job_submitted ON %s (job_id, submitted_at DESC);`, submissionsTable, submissionsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    job_id TEXT NOT NULL,
    freelancer_address TEXT NOT NULL DEFAULT '',
    work TEXT NOT NULL,
    result JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`, qualityChecksTable),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const submissionColumns = `id, job_id, freelancer_address, work, quality_score, quality_check_id, status, retry_count,
    rejection_reason, review_score, fixable_score, reassign_score, submitted_at, last_updated`

func (s *Store) GetSubmission(ctx context.Context, jobID, freelancerAddress string) (marketplace.WorkSubmission, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM `+submissionsTable+`
WHERE job_id = $1 AND freelancer_address = $2`, jobID, freelancerAddress)
	sub, err := scanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return marketplace.WorkSubmission{}, marketplace.ErrSubmissionNotFound
	}
	if err != nil {
		return marketplace.WorkSubmission{}, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func (s *Store) SaveSubmission(ctx context.Context, sub marketplace.WorkSubmission) error {
	if sub.JobID == "" || sub.FreelancerAddress == "" {
		return fmt.Errorf("job_id and freelancer_address required")
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO `+submissionsTable+` (`+submissionColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (job_id, freelancer_address)
DO UPDATE SET id = EXCLUDED.id,
              work = EXCLUDED.work,
              quality_score = EXCLUDED.quality_score,
              quality_check_id = EXCLUDED.quality_check_id,
              status = EXCLUDED.status,
              retry_count = EXCLUDED.retry_count,
              rejection_reason = EXCLUDED.rejection_reason,
              review_score = EXCLUDED.review_score,
              fixable_score = EXCLUDED.fixable_score,
              reassign_score = EXCLUDED.reassign_score,
              submitted_at = EXCLUDED.submitted_at,
              last_updated = EXCLUDED.last_updated
`, sub.ID, sub.JobID, sub.FreelancerAddress, sub.Work, sub.QualityScore, sub.QualityCheckID, string(sub.Status), sub.RetryCount,
		sub.RejectionReason, sub.ReviewScore, sub.FixableScore, sub.ReassignScore, sub.SubmittedAt, sub.LastUpdated)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (s *Store) ListSubmissions(ctx context.Context, jobID, freelancerAddress string) ([]marketplace.WorkSubmission, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+submissionColumns+` FROM `+submissionsTable+`
WHERE job_id = $1 AND ($2 = '' OR freelancer_address = $2)
ORDER BY submitted_at DESC, id DESC`, jobID, freelancerAddress)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := make([]marketplace.WorkSubmission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return out, nil
}

func scanSubmission(row pgx.Row) (marketplace.WorkSubmission, error) {
	var (
		sub    marketplace.WorkSubmission
		status string
	)
	err := row.Scan(&sub.ID, &sub.JobID, &sub.FreelancerAddress, &sub.Work, &sub.QualityScore, &sub.QualityCheckID, &status, &sub.RetryCount,
		&sub.RejectionReason, &sub.ReviewScore, &sub.FixableScore, &sub.ReassignScore, &sub.SubmittedAt, &sub.LastUpdated)
	if err != nil {
		return marketplace.WorkSubmission{}, err
	}
	sub.Status = marketplace.SubmissionStatus(status)
	return sub, nil
}

func (s *Store) SaveQualityCheck(ctx context.Context, record marketplace.QualityCheckRecord) error {
	if record.ID == "" || record.JobID == "" {
		return fmt.Errorf("id and job_id required")
	}
	result, err := jsonx.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("encode quality check result: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO `+qualityChecksTable+` (id, job_id, freelancer_address, work, result, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, record.ID, record.JobID, record.FreelancerAddress, record.Work, result, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("save quality check: %w", err)
	}
	return nil
}

func (s *Store) GetQualityCheck(ctx context.Context, id string) (marketplace.QualityCheckRecord, error) {
	var (
		record marketplace.QualityCheckRecord
		result []byte
	)
	err := s.pool.QueryRow(ctx, `
SELECT id, job_id, freelancer_address, work, result, created_at FROM `+qualityChecksTable+`
WHERE id = $1`, id).Scan(&record.ID, &record.JobID, &record.FreelancerAddress, &record.Work, &result, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return marketplace.QualityCheckRecord{}, marketplace.ErrQualityCheckNotFound
	}
	if err != nil {
		return marketplace.QualityCheckRecord{}, fmt.Errorf("get quality check: %w", err)
	}
	if err := jsonx.Unmarshal(result, &record.Result); err != nil {
		s.logger.Warn("quality check %s has an unreadable result: %v", record.ID, err)
		return marketplace.QualityCheckRecord{}, fmt.Errorf("decode quality check result: %w", err)
	}
	return record, nil
}
