package analyses

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// PGRepo implements Repo using Postgres. The analyses_changed trigger
// notifies listeners on every write, including ones made by other services.
type PGRepo struct {
	DB *sqlx.DB
}

const recordColumns = `id, user_id, created_at, finished_at, status, decision, probability, image_url,
       image_width, image_height, image_format, image_size_kb, updated_at`

// Upsert inserts or replaces a record. The WHERE clause on the conflict
// branch keeps terminal results and ownership intact; a skipped write
// returns ErrStale.
func (r *PGRepo) Upsert(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	const query = `
INSERT INTO analyses (
	id, user_id, created_at, finished_at, status, decision, probability, image_url,
	image_width, image_height, image_format, image_size_kb, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
ON CONFLICT (id) DO UPDATE SET
	finished_at = EXCLUDED.finished_at,
	status = EXCLUDED.status,
	decision = EXCLUDED.decision,
	probability = EXCLUDED.probability,
	image_url = EXCLUDED.image_url,
	image_width = EXCLUDED.image_width,
	image_height = EXCLUDED.image_height,
	image_format = EXCLUDED.image_format,
	image_size_kb = EXCLUDED.image_size_kb,
	updated_at = now()
WHERE analyses.user_id = EXCLUDED.user_id
  AND NOT (analyses.status IN ('success', 'unsuccessful') AND EXCLUDED.status = 'under_analysis')`
	res, err := r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.CreatedAt,
		rec.FinishedAt,
		rec.Status,
		rec.Decision,
		rec.Probability,
		rec.ImageURL,
		rec.ImageWidth,
		rec.ImageHeight,
		rec.ImageFormat,
		rec.ImageSizeKB,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	return nil
}

func (r *PGRepo) Get(ctx context.Context, userID, analysisID string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM analyses WHERE id = $1 AND user_id = $2 LIMIT 1`
	var rec Record
	if err := r.DB.GetContext(ctx, &rec, query, analysisID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (r *PGRepo) List(ctx context.Context, q Query) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM analyses WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{q.UserID}
	if q.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, q.Limit)
	}
	out := make([]Record, 0)
	if err := r.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PGRepo) Count(ctx context.Context, userID string, since time.Time) (int, int, error) {
	const query = `
SELECT count(*) AS total, count(*) FILTER (WHERE created_at >= $2) AS recent
FROM analyses
WHERE user_id = $1`
	var row struct {
		Total  int `db:"total"`
		Recent int `db:"recent"`
	}
	if err := r.DB.GetContext(ctx, &row, query, userID, since); err != nil {
		return 0, 0, err
	}
	return row.Total, row.Recent, nil
}
