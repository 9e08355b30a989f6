// internal/model/broadcast_job.go
package model

import "time"

// Job status values. Transitions: pending -> running -> succeeded|failed,
// pending -> cancelled. succeeded, failed and cancelled are terminal.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

type BroadcastJob struct {
	ID           int        `db:"id" json:"id"`
	Content      string     `db:"content" json:"content"`
	GroupIDs     []int64    `db:"group_ids" json:"group_ids"`
	GroupNames   []string   `db:"group_names" json:"group_names"` // snapshot at creation
	RunAt        time.Time  `db:"run_at" json:"run_at"`
	Status       string     `db:"status" json:"status"`
	Total        *int       `db:"total" json:"total,omitempty"`
	SuccessCount *int       `db:"success_count" json:"success_count,omitempty"`
	Error        *string    `db:"error" json:"error,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
