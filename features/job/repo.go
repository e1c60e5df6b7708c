package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type Repository interface {
	Save(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context) ([]Job, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// FetchDue returns up to limit pending jobs due at now with attempts
	// remaining, oldest scheduled_for first (id as tie-break). It does not
	// claim them; claiming is MarkRunning.
	FetchDue(ctx context.Context, now time.Time, limit int) ([]Job, error)

	// MarkRunning claims a pending job: sets running, started_at, and
	// increments attempts, returning the new attempt count. ErrConflict when
	// the job is not pending anymore.
	MarkRunning(ctx context.Context, id string, now time.Time) (int, error)

	// MarkCompleted transitions running -> completed. ErrConflict otherwise.
	MarkCompleted(ctx context.Context, id string, now time.Time) error

	// MarkFailed transitions running -> failed with a terminal error message.
	MarkFailed(ctx context.Context, id string, now time.Time, errMsg string) error

	// Reschedule transitions running -> pending with a new due time, keeping
	// the attempt count already charged by MarkRunning.
	Reschedule(ctx context.Context, id string, now, nextTime time.Time, errMsg string) error

	// ReclaimStale requeues running jobs whose started_at predates the
	// threshold, failing permanently those with no attempts left. Returns the
	// number of jobs touched.
	ReclaimStale(ctx context.Context, now time.Time, threshold time.Time) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const jobColumns = `id, job_type, status, scheduled_for, attempts, max_attempts, started_at, completed_at, error_message, job_data, content_item_id, created_at, updated_at`

func (r *PostgresRepo) Save(ctx context.Context, j *Job) error {
	query := `INSERT INTO jobs (id, job_type, status, scheduled_for, attempts, max_attempts, job_data, content_item_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::uuid)
		RETURNING created_at, updated_at`
	return r.db.QueryRowContext(ctx, query,
		j.ID, j.Type, j.Status, j.ScheduledFor, j.Attempts, j.MaxAttempts, j.Data, j.ContentItemID,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepo) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

func (r *PostgresRepo) FetchDue(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE status = 'pending' AND scheduled_for <= $1 AND attempts < max_attempts
		ORDER BY scheduled_for ASC, id ASC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepo) MarkRunning(ctx context.Context, id string, now time.Time) (int, error) {
	query := `UPDATE jobs
		SET status = 'running', started_at = $2, attempts = attempts + 1, updated_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING attempts`
	var attempts int
	err := r.db.QueryRowContext(ctx, query, id, now).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

func (r *PostgresRepo) MarkCompleted(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE jobs
		SET status = 'completed', completed_at = $2, error_message = NULL, updated_at = $2
		WHERE id = $1 AND status = 'running'`
	return r.conditional(ctx, query, id, now)
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, id string, now time.Time, errMsg string) error {
	query := `UPDATE jobs
		SET status = 'failed', completed_at = $2, error_message = $3, updated_at = $2
		WHERE id = $1 AND status = 'running'`
	return r.conditional(ctx, query, id, now, errMsg)
}

func (r *PostgresRepo) Reschedule(ctx context.Context, id string, now, nextTime time.Time, errMsg string) error {
	query := `UPDATE jobs
		SET status = 'pending', scheduled_for = $3, error_message = $4, updated_at = $2
		WHERE id = $1 AND status = 'running'`
	return r.conditional(ctx, query, id, now, nextTime, errMsg)
}

func (r *PostgresRepo) ReclaimStale(ctx context.Context, now time.Time, threshold time.Time) (int, error) {
	requeue := `UPDATE jobs
		SET status = 'pending', scheduled_for = $1, error_message = 'reclaimed: stale running job', updated_at = $1
		WHERE status = 'running' AND started_at < $2 AND attempts < max_attempts`
	res, err := r.db.ExecContext(ctx, requeue, now, threshold)
	if err != nil {
		return 0, err
	}
	requeued, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	fail := `UPDATE jobs
		SET status = 'failed', completed_at = $1, error_message = 'reclaimed: stale running job, no attempts left', updated_at = $1
		WHERE status = 'running' AND started_at < $2 AND attempts >= max_attempts`
	res, err = r.db.ExecContext(ctx, fail, now, threshold)
	if err != nil {
		return 0, err
	}
	failed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(requeued + failed), nil
}

// conditional runs a guarded UPDATE and maps zero affected rows to ErrConflict.
func (r *PostgresRepo) conditional(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var startedAt, completedAt sql.NullTime
	var errMsg, contentItemID sql.NullString
	var data []byte

	err := row.Scan(&j.ID, &j.Type, &j.Status, &j.ScheduledFor, &j.Attempts, &j.MaxAttempts,
		&startedAt, &completedAt, &errMsg, &data, &contentItemID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	j.ErrorMessage = errMsg.String
	j.ContentItemID = contentItemID.String
	j.Data = json.RawMessage(data)
	return &j, nil
}
