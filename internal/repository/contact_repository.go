package repository

import (
	"database/sql"
	"strings"

	"github.com/lib/pq"

	appErrors "github.com/wxpilot/broadcast-backend/internal/errors"
	"github.com/wxpilot/broadcast-backend/internal/model"
)

// ContactRepositoryInterface defines the roster store methods used by services.
type ContactRepositoryInterface interface {
	List(filter string) ([]model.Contact, error)
	GetByID(id int) (*model.Contact, error)
	Count() (int, error)
	UpsertSnapshot(snapshot []model.ContactSnapshot) error
	SetGroup(contactID int, groupID *int) error
	UpdateRemark(contactID int, remark string) error
	ListByGroups(groupIDs []int64) ([]model.Contact, error)
}

// ContactRepository is the concrete Postgres implementation.
type ContactRepository struct {
	DB *sql.DB
}

const contactColumns = `
	c.id, c.uid, c.name, c.remark, c.region, c.phone, c.group_id,
	g.name AS group_name, c.created_at, c.updated_at
`

func scanContact(row interface{ Scan(...any) error }) (*model.Contact, error) {
	var c model.Contact
	var groupID sql.NullInt64
	var groupName sql.NullString
	err := row.Scan(&c.ID, &c.UID, &c.Name, &c.Remark, &c.Region, &c.Phone,
		&groupID, &groupName, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if groupID.Valid {
		gid := int(groupID.Int64)
		c.GroupID = &gid
	}
	if groupName.Valid {
		c.GroupName = &groupName.String
	}
	return &c, nil
}

// List returns contacts newest first, optionally narrowed by a
// case-insensitive substring match over name, uid, region and phone.
// An empty filter returns the full roster.
func (r *ContactRepository) List(filter string) ([]model.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts c
		LEFT JOIN groups g ON c.group_id = g.id
	`
	args := []interface{}{}
	if strings.TrimSpace(filter) != "" {
		query += ` WHERE c.name ILIKE $1 OR c.uid ILIKE $1 OR c.region ILIKE $1 OR c.phone ILIKE $1`
		args = append(args, "%"+strings.TrimSpace(filter)+"%")
	}
	query += ` ORDER BY c.id DESC`

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

func (r *ContactRepository) GetByID(id int) (*model.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts c
		LEFT JOIN groups g ON c.group_id = g.id
		WHERE c.id = $1
	`
	c, err := scanContact(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewContactNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *ContactRepository) Count() (int, error) {
	var n int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&n)
	return n, err
}

// UpsertSnapshot merges an external roster snapshot keyed by uid. Only the
// profile fields come from the snapshot; remark and group_id stay local.
func (r *ContactRepository) UpsertSnapshot(snapshot []model.ContactSnapshot) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO contacts (uid, name, region, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (uid) DO UPDATE SET
			name = excluded.name,
			region = excluded.region,
			phone = excluded.phone,
			updated_at = NOW()
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range snapshot {
		if strings.TrimSpace(s.UID) == "" {
			continue
		}
		if _, err := stmt.Exec(s.UID, s.Name, s.Region, s.Phone); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetGroup updates the group reference; nil clears it. Group existence is
// validated by the caller, which holds the group lock.
func (r *ContactRepository) SetGroup(contactID int, groupID *int) error {
	var gid sql.NullInt64
	if groupID != nil {
		gid = sql.NullInt64{Int64: int64(*groupID), Valid: true}
	}
	res, err := r.DB.Exec(
		`UPDATE contacts SET group_id=$1, updated_at=NOW() WHERE id=$2`,
		gid, contactID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewContactNotFound(contactID)
	}
	return nil
}

func (r *ContactRepository) UpdateRemark(contactID int, remark string) error {
	res, err := r.DB.Exec(
		`UPDATE contacts SET remark=$1, updated_at=NOW() WHERE id=$2`,
		remark, contactID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewContactNotFound(contactID)
	}
	return nil
}

// ListByGroups returns the contacts whose group reference is in groupIDs.
// Each contact appears once; a contact with no group never matches.
func (r *ContactRepository) ListByGroups(groupIDs []int64) ([]model.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts c
		LEFT JOIN groups g ON c.group_id = g.id
		WHERE c.group_id = ANY($1)
		ORDER BY c.id
	`
	rows, err := r.DB.Query(query, pq.Array(groupIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
