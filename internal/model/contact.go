// internal/model/contact.go
package model

import "time"

// Contact is one roster entry. uid is assigned by the external channel and
// is the stable identity key; remark and group_id are operator-owned and
// survive roster snapshot ingestion.
type Contact struct {
	ID        int       `db:"id" json:"id"`
	UID       string    `db:"uid" json:"uid"`
	Name      string    `db:"name" json:"name"`
	Remark    string    `db:"remark" json:"remark,omitempty"`
	Region    string    `db:"region" json:"region"`
	Phone     string    `db:"phone" json:"phone"`
	GroupID   *int      `db:"group_id" json:"group_id,omitempty"`
	GroupName *string   `db:"group_name" json:"group_name,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ContactSnapshot is the profile subset the external roster supplies.
// It never carries remark or group assignment.
type ContactSnapshot struct {
	UID    string `json:"uid"`
	Name   string `json:"name"`
	Region string `json:"region"`
	Phone  string `json:"phone"`
}
