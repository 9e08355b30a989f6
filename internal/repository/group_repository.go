package repository

import (
	"database/sql"

	"github.com/lib/pq"

	appErrors "github.com/wxpilot/broadcast-backend/internal/errors"
	"github.com/wxpilot/broadcast-backend/internal/model"
)

type GroupRepositoryInterface interface {
	Create(name string) (*model.Group, error)
	Rename(id int, name string) error
	Delete(id int) error
	GetByID(id int) (*model.Group, error)
	List() ([]model.Group, error)
	MemberCount(id int) (int, error)
	NamesByIDs(ids []int64) (map[int64]string, error)
}

type GroupRepository struct {
	DB *sql.DB
}

// Postgres unique_violation
const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == pqUniqueViolation
}

func (r *GroupRepository) Create(name string) (*model.Group, error) {
	g := &model.Group{Name: name}
	err := r.DB.QueryRow(
		`INSERT INTO groups (name) VALUES ($1) RETURNING id, created_at`,
		name,
	).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.NewGroupNameTaken(name)
		}
		return nil, err
	}
	return g, nil
}

func (r *GroupRepository) Rename(id int, name string) error {
	res, err := r.DB.Exec(
		`UPDATE groups SET name=$1, updated_at=NOW() WHERE id=$2`,
		name, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.NewGroupNameTaken(name)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewGroupNotFound(id)
	}
	return nil
}

func (r *GroupRepository) Delete(id int) error {
	res, err := r.DB.Exec(`DELETE FROM groups WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewGroupNotFound(id)
	}
	return nil
}

func (r *GroupRepository) GetByID(id int) (*model.Group, error) {
	query := `
		SELECT g.id, g.name, g.created_at, g.updated_at,
		       (SELECT COUNT(*) FROM contacts c WHERE c.group_id = g.id) AS member_count
		FROM groups g WHERE g.id = $1
	`
	var g model.Group
	err := r.DB.QueryRow(query, id).Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt, &g.MemberCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewGroupNotFound(id)
		}
		return nil, err
	}
	return &g, nil
}

// List returns groups newest first with their derived member counts.
func (r *GroupRepository) List() ([]model.Group, error) {
	query := `
		SELECT g.id, g.name, g.created_at, g.updated_at,
		       (SELECT COUNT(*) FROM contacts c WHERE c.group_id = g.id) AS member_count
		FROM groups g
		ORDER BY g.id DESC
	`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []model.Group{}
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt, &g.MemberCount); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *GroupRepository) MemberCount(id int) (int, error) {
	var n int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM contacts WHERE group_id=$1`, id).Scan(&n)
	return n, err
}

// NamesByIDs resolves group ids to names. Ids absent from the result were
// unknown; the caller decides whether that is an error.
func (r *GroupRepository) NamesByIDs(ids []int64) (map[int64]string, error) {
	rows, err := r.DB.Query(`SELECT id, name FROM groups WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := map[int64]string{}
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

var _ GroupRepositoryInterface = (*GroupRepository)(nil)
