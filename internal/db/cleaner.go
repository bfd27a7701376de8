package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PurgeExpiredSessions deletes the sessions that expired before now and
// returns how many were removed.
func PurgeExpiredSessions(ctx context.Context, conn *sql.DB, dialect Dialect, now time.Time) (int64, error) {
	res, err := conn.ExecContext(ctx, dialect.Rebind(`DELETE FROM sessions WHERE expires_at < ?`), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return n, nil
}

// StartExpiredSessionCleaner purges expired sessions every interval until
// ctx is cancelled. Expired tokens are already rejected on lookup; this only
// keeps the table small.
func StartExpiredSessionCleaner(
	ctx context.Context,
	conn *sql.DB,
	dialect Dialect,
	interval time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				removed, err := PurgeExpiredSessions(ctx, conn, dialect, now)
				switch {
				case err != nil:
					log.Error("failed to clean expired sessions", zap.Error(err))
				case removed > 0:
					log.Info("cleaned expired sessions", zap.Int64("removed", removed))
				default:
					log.Debug("no expired sessions")
				}
			}
		}
	}()
}
