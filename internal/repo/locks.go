package repo

import (
	"context"
	"fmt"
	"time"
)

// LockStore provides named leases so only one instance runs a scheduled job at a time.
type LockStore interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

// AcquireLock takes the lease when it is free or expired.
func (r *repository) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduler_locks (name, locked_until) VALUES ($1, NOW() + make_interval(secs => $2))
		ON CONFLICT (name) DO UPDATE SET locked_until = EXCLUDED.locked_until
		WHERE scheduler_locks.locked_until < NOW()
	`, name, ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	return n == 1, nil
}

func (r *repository) ReleaseLock(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM scheduler_locks WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}
