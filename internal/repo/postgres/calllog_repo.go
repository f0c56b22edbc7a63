package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doorlink/doorlink/internal/domain"
)

type CallLogRepository interface {
	// Upsert writes the log row for a call. The row is keyed by provider
	// call SID: a redelivered terminal event, or a terminal event for a
	// call already logged eagerly by the gateway, keeps the first row and
	// only backfills the duration.
	Upsert(ctx context.Context, entry *domain.CallLog) (created bool, err error)
	ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]domain.CallLog, error)
}

type callLogRepository struct {
	pool *pgxpool.Pool
}

func NewCallLogRepository(pool *pgxpool.Pool) CallLogRepository {
	return &callLogRepository{pool: pool}
}

const callLogCols = `id, call_sid, account_id, caller_number, status, duration,
forwarded_to, passcode_label, entered_code, created_at`

func (r *callLogRepository) Upsert(ctx context.Context, entry *domain.CallLog) (bool, error) {
	const q = `
		INSERT INTO call_logs (call_sid, account_id, caller_number, status, duration, forwarded_to, passcode_label, entered_code)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (call_sid) DO UPDATE SET
			duration = GREATEST(call_logs.duration, EXCLUDED.duration)
		RETURNING (xmax = 0)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var created bool
	err := r.pool.QueryRow(ctx, q,
		entry.CallSID, entry.AccountID, entry.CallerNumber, entry.Status,
		entry.Duration, entry.ForwardedTo, entry.PasscodeLabel, entry.EnteredCode,
	).Scan(&created)
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *callLogRepository) ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]domain.CallLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `SELECT ` + callLogCols + `
		FROM call_logs
		WHERE account_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CallLog
	for rows.Next() {
		var c domain.CallLog
		if err := rows.Scan(
			&c.ID, &c.CallSID, &c.AccountID, &c.CallerNumber, &c.Status, &c.Duration,
			&c.ForwardedTo, &c.PasscodeLabel, &c.EnteredCode, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
