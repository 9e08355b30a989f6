// internal/model/delivery_record.go
package model

import "time"

// DeliveryRecord is one immutable audit entry per completed fan-out,
// immediate or scheduled. GroupNames is a snapshot taken at dispatch time
// and is independent of later group renames or deletions.
type DeliveryRecord struct {
	ID           int       `db:"id" json:"id"`
	Content      string    `db:"content" json:"content"`
	GroupNames   []string  `db:"group_names" json:"group_names"`
	Total        int       `db:"total" json:"total"`
	SuccessCount int       `db:"success_count" json:"success_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
