package repository

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/wxpilot/broadcast-backend/internal/model"
)

// DeliveryHistoryRepositoryInterface is the append-only delivery ledger.
// No update or delete is exposed.
type DeliveryHistoryRepositoryInterface interface {
	Append(rec *model.DeliveryRecord) error
	List() ([]model.DeliveryRecord, error)
}

type DeliveryHistoryRepository struct {
	DB *sql.DB
}

func (r *DeliveryHistoryRepository) Append(rec *model.DeliveryRecord) error {
	query := `
		INSERT INTO delivery_history (content, group_names, total, success_count)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	return r.DB.QueryRow(query,
		rec.Content, pq.Array(rec.GroupNames), rec.Total, rec.SuccessCount,
	).Scan(&rec.ID, &rec.CreatedAt)
}

// List returns the full ledger, newest first.
func (r *DeliveryHistoryRepository) List() ([]model.DeliveryRecord, error) {
	rows, err := r.DB.Query(`
		SELECT id, content, group_names, total, success_count, created_at
		FROM delivery_history
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []model.DeliveryRecord{}
	for rows.Next() {
		var rec model.DeliveryRecord
		if err := rows.Scan(&rec.ID, &rec.Content, pq.Array(&rec.GroupNames),
			&rec.Total, &rec.SuccessCount, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

var _ DeliveryHistoryRepositoryInterface = (*DeliveryHistoryRepository)(nil)
