package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// UpsertConnectAccount mirrors the state of a Stripe Connect account.
func (ps *PostgresStorage) UpsertConnectAccount(ctx context.Context, a *ConnectAccount) error {
	if a == nil || a.AccountID == "" {
		return ErrInvalidData
	}
	a.UpdatedAt = time.Now().UTC()
	_, err := ps.pool.Exec(ctx, `INSERT INTO connect_accounts (account_id, email, country, charges_enabled,
		payouts_enabled, details_submitted, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id) DO UPDATE SET
			email = CASE WHEN EXCLUDED.email = '' THEN connect_accounts.email ELSE EXCLUDED.email END,
			country = CASE WHEN EXCLUDED.country = '' THEN connect_accounts.country ELSE EXCLUDED.country END,
			charges_enabled = EXCLUDED.charges_enabled,
			payouts_enabled = EXCLUDED.payouts_enabled,
			details_submitted = EXCLUDED.details_submitted,
			updated_at = EXCLUDED.updated_at`,
		a.AccountID, a.Email, a.Country, a.ChargesEnabled, a.PayoutsEnabled, a.DetailsSubmitted, a.UpdatedAt)
	return err
}

// ConnectAccount returns the mirrored state of a Connect account.
func (ps *PostgresStorage) ConnectAccount(ctx context.Context, accountID string) (*ConnectAccount, error) {
	a := &ConnectAccount{}
	err := ps.pool.QueryRow(ctx, `SELECT account_id, email, country, charges_enabled, payouts_enabled,
		details_submitted, updated_at FROM connect_accounts WHERE account_id = $1`, accountID).
		Scan(&a.AccountID, &a.Email, &a.Country, &a.ChargesEnabled, &a.PayoutsEnabled, &a.DetailsSubmitted,
			&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}
