package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/wxpilot/broadcast-backend/internal/errors"
	"github.com/wxpilot/broadcast-backend/internal/model"
)

// BroadcastJobRepositoryInterface is the durable scheduled-job queue. The
// status column is written only through the transition methods below; the
// compare-and-set shape of MarkRunning and CancelPending is what gives
// at-most-once execution when ticks overlap operator actions.
type BroadcastJobRepositoryInterface interface {
	Create(j *model.BroadcastJob) error
	GetByID(id int) (*model.BroadcastJob, error)
	List() ([]model.BroadcastJob, error)
	DuePending(now time.Time, limit int) ([]model.BroadcastJob, error)
	MarkRunning(id int) (bool, error)
	MarkSucceeded(id, total, successCount int) error
	MarkFailed(id int, errMsg string) error
	CancelPending(id int) (bool, error)
	FailStaleRunning(olderThan time.Time, errMsg string) (int, error)
}

type BroadcastJobRepository struct {
	DB *sql.DB
}

func (r *BroadcastJobRepository) Create(j *model.BroadcastJob) error {
	if j.Status == "" {
		j.Status = model.JobStatusPending
	}
	query := `
		INSERT INTO broadcast_jobs (content, group_ids, group_names, run_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.DB.QueryRow(query,
		j.Content, pq.Array(j.GroupIDs), pq.Array(j.GroupNames), j.RunAt, j.Status,
	).Scan(&j.ID, &j.CreatedAt)
}

const jobColumns = `
	id, content, group_ids, group_names, run_at, status,
	total, success_count, error, created_at, updated_at
`

func scanJob(row interface{ Scan(...any) error }) (*model.BroadcastJob, error) {
	var j model.BroadcastJob
	err := row.Scan(
		&j.ID, &j.Content, pq.Array(&j.GroupIDs), pq.Array(&j.GroupNames),
		&j.RunAt, &j.Status, &j.Total, &j.SuccessCount, &j.Error,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *BroadcastJobRepository) GetByID(id int) (*model.BroadcastJob, error) {
	j, err := scanJob(r.DB.QueryRow(
		`SELECT `+jobColumns+` FROM broadcast_jobs WHERE id=$1`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewJobNotFound(id)
		}
		return nil, err
	}
	return j, nil
}

// List returns every job regardless of status, newest first.
func (r *BroadcastJobRepository) List() ([]model.BroadcastJob, error) {
	rows, err := r.DB.Query(`SELECT ` + jobColumns + ` FROM broadcast_jobs ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []model.BroadcastJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *BroadcastJobRepository) DuePending(now time.Time, limit int) ([]model.BroadcastJob, error) {
	rows, err := r.DB.Query(`
		SELECT `+jobColumns+`
		FROM broadcast_jobs
		WHERE status=$1 AND run_at <= $2
		ORDER BY id ASC
		LIMIT $3
	`, model.JobStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []model.BroadcastJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// MarkRunning transitions pending -> running. Returns false when the job was
// no longer pending, which means another tick got there first or the job was
// cancelled.
func (r *BroadcastJobRepository) MarkRunning(id int) (bool, error) {
	res, err := r.DB.Exec(`
		UPDATE broadcast_jobs SET status=$1, updated_at=NOW()
		WHERE id=$2 AND status=$3
	`, model.JobStatusRunning, id, model.JobStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *BroadcastJobRepository) MarkSucceeded(id, total, successCount int) error {
	_, err := r.DB.Exec(`
		UPDATE broadcast_jobs
		SET status=$1, total=$2, success_count=$3, updated_at=NOW()
		WHERE id=$4
	`, model.JobStatusSucceeded, total, successCount, id)
	return err
}

func (r *BroadcastJobRepository) MarkFailed(id int, errMsg string) error {
	_, err := r.DB.Exec(`
		UPDATE broadcast_jobs SET status=$1, error=$2, updated_at=NOW()
		WHERE id=$3
	`, model.JobStatusFailed, errMsg, id)
	return err
}

// CancelPending transitions pending -> cancelled. Returns false when the job
// exists but is not pending.
func (r *BroadcastJobRepository) CancelPending(id int) (bool, error) {
	res, err := r.DB.Exec(`
		UPDATE broadcast_jobs SET status=$1, updated_at=NOW()
		WHERE id=$2 AND status=$3
	`, model.JobStatusCancelled, id, model.JobStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FailStaleRunning fails running jobs untouched since olderThan. Run at
// startup: a job still marked running from before a restart will never
// finish on its own.
func (r *BroadcastJobRepository) FailStaleRunning(olderThan time.Time, errMsg string) (int, error) {
	res, err := r.DB.Exec(`
		UPDATE broadcast_jobs SET status=$1, error=$2, updated_at=NOW()
		WHERE status=$3 AND updated_at < $4
	`, model.JobStatusFailed, errMsg, model.JobStatusRunning, olderThan)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ BroadcastJobRepositoryInterface = (*BroadcastJobRepository)(nil)
