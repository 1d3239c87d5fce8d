package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

const purgeQuery = `
DELETE FROM client_state
 WHERE deleted = TRUE
   AND updated_at < $1
`

// PurgeDeletedState hard-deletes rows soft-deleted before cutoff and
// returns how many were removed.
func PurgeDeletedState(ctx context.Context, db *sql.DB, cutoff time.Time, log *zap.Logger) (int64, error) {
	res, err := db.ExecContext(ctx, purgeQuery, cutoff)
	if err != nil {
		return 0, err
	}
	rows, _ := res.RowsAffected()
	if rows > 0 {
		log.Info("purged deleted client state", zap.Int64("removed", rows))
	}
	return rows, nil
}
