package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doorlink/doorlink/internal/domain"
)

type AccountRepository interface {
	GetByDialedNumber(ctx context.Context, number string) (*domain.Account, error)
	IncrementPasscodeUsage(ctx context.Context, passcodeID int64) error
	UpdateSubscriptionByCustomer(ctx context.Context, customerID string, status domain.SubscriptionStatus) (bool, error)
}

type accountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

const accountCols = `id, name, owner_email, dialed_number, stripe_customer_id,
subscription_status, paused, pause_forward_number,
door_code, access_code, quiet_start_hour, quiet_end_hour,
created_at, updated_at`

func (r *accountRepository) GetByDialedNumber(ctx context.Context, number string) (*domain.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts WHERE dialed_number=$1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var a domain.Account
	err := r.pool.QueryRow(ctx, q, number).Scan(
		&a.ID, &a.Name, &a.OwnerEmail, &a.DialedNumber, &a.StripeCustomerID,
		&a.SubscriptionStatus, &a.Paused, &a.PauseForwardNumber,
		&a.DoorCode, &a.AccessCode, &a.QuietStartHour, &a.QuietEndHour,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	passcodes, err := r.listPasscodes(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Passcodes = passcodes

	return &a, nil
}

func (r *accountRepository) listPasscodes(ctx context.Context, accountID int64) ([]domain.Passcode, error) {
	const q = `
		SELECT id, account_id, code, label, active, expires_at, max_usages, usage_count, last_used_at, created_at
		FROM passcodes
		WHERE account_id=$1
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Passcode
	for rows.Next() {
		var p domain.Passcode
		if err := rows.Scan(
			&p.ID, &p.AccountID, &p.Code, &p.Label, &p.Active,
			&p.ExpiresAt, &p.MaxUsages, &p.UsageCount, &p.LastUsedAt, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// IncrementPasscodeUsage bumps the usage counter atomically. The guard in
// the WHERE clause keeps usage_count under max_usages even when two
// verifications race against the last remaining use.
func (r *accountRepository) IncrementPasscodeUsage(ctx context.Context, passcodeID int64) error {
	const q = `
		UPDATE passcodes
		SET usage_count = usage_count + 1,
		    last_used_at = now()
		WHERE id = $1
		  AND active
		  AND (max_usages IS NULL OR usage_count < max_usages)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, passcodeID)
	return err
}

func (r *accountRepository) UpdateSubscriptionByCustomer(ctx context.Context, customerID string, status domain.SubscriptionStatus) (bool, error) {
	const q = `
		UPDATE accounts
		SET subscription_status = $2, updated_at = now()
		WHERE stripe_customer_id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, customerID, status)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}
