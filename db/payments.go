package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/internal"
)

const paymentColumns = `id, provider, status, amount_cents, currency, customer_email,
	COALESCE(stripe_session_id, ''), COALESCE(stripe_payment_intent_id, ''), wallet_address,
	COALESCE(tx_hash, ''), network, token, COALESCE(token_amount::text, ''), description,
	failure_reason, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	p := &Payment{}
	err := row.Scan(&p.ID, &p.Provider, &p.Status, &p.AmountCents, &p.Currency, &p.CustomerEmail,
		&p.StripeSessionID, &p.StripePaymentIntentID, &p.WalletAddress,
		&p.TxHash, &p.Network, &p.Token, &p.TokenAmount, &p.Description,
		&p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreatePayment inserts a new payment. Timestamps are assigned by the storage
// and so is the id unless the caller already set a valid one. A payment
// reusing an id, a Stripe session id or a transaction hash returns
// ErrAlreadyExists.
func (ps *PostgresStorage) CreatePayment(ctx context.Context, p *Payment) error {
	if p == nil || p.Provider == "" || p.AmountCents < 0 {
		return ErrInvalidData
	}
	if p.Status == "" {
		p.Status = PaymentPending
	}
	if p.Currency == "" {
		p.Currency = "usd"
	}
	p.Currency = strings.ToLower(p.Currency)
	if uuid.Validate(p.ID) != nil {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := ps.pool.Exec(ctx, `INSERT INTO payments (id, provider, status, amount_cents, currency,
		customer_email, stripe_session_id, stripe_payment_intent_id, wallet_address, tx_hash,
		network, token, token_amount, description, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::numeric, $14, $15, $16, $16)`,
		p.ID, p.Provider, p.Status, p.AmountCents, p.Currency,
		p.CustomerEmail, nullIfEmpty(p.StripeSessionID), nullIfEmpty(p.StripePaymentIntentID), p.WalletAddress,
		nullIfEmpty(p.TxHash), p.Network, p.Token, nullIfEmpty(p.TokenAmount), p.Description, p.FailureReason, now)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if isCheckViolation(err) {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return err
}

// Payment returns the payment with the given id.
func (ps *PostgresStorage) Payment(ctx context.Context, id string) (*Payment, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return scanPayment(ps.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

// UpdatePaymentStatusBySession moves the payment of a checkout session to a
// new status. ErrInvalidTransition is returned when the move is not allowed,
// leaving the row untouched.
func (ps *PostgresStorage) UpdatePaymentStatusBySession(ctx context.Context, sessionID, status string,
	upd PaymentUpdate,
) (*Payment, error) {
	return ps.updatePaymentStatus(ctx, `stripe_session_id = $1`, sessionID, status, upd)
}

// UpdatePaymentStatusByIntent is UpdatePaymentStatusBySession keyed by the
// Stripe payment intent id.
func (ps *PostgresStorage) UpdatePaymentStatusByIntent(ctx context.Context, intentID, status string,
	upd PaymentUpdate,
) (*Payment, error) {
	return ps.updatePaymentStatus(ctx, `stripe_payment_intent_id = $1`, intentID, status, upd)
}

// UpdatePaymentStatus is UpdatePaymentStatusBySession keyed by the payment id.
func (ps *PostgresStorage) UpdatePaymentStatus(ctx context.Context, id, status string,
	upd PaymentUpdate,
) (*Payment, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return ps.updatePaymentStatus(ctx, `id = $1`, id, status, upd)
}

func (ps *PostgresStorage) updatePaymentStatus(ctx context.Context, where, key, status string,
	upd PaymentUpdate,
) (*Payment, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	var updated *Payment
	err := pgx.BeginFunc(ctx, ps.pool, func(tx pgx.Tx) error {
		current, err := scanPayment(tx.QueryRow(ctx,
			`SELECT `+paymentColumns+` FROM payments WHERE `+where+` ORDER BY created_at DESC LIMIT 1 FOR UPDATE`, key))
		if err != nil {
			return err
		}
		if !CanTransitionPayment(current.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
		}
		updated, err = scanPayment(tx.QueryRow(ctx, `UPDATE payments SET
			status = $2,
			stripe_payment_intent_id = COALESCE($3, stripe_payment_intent_id),
			customer_email = COALESCE($4, customer_email),
			failure_reason = COALESCE($5, failure_reason),
			updated_at = NOW()
			WHERE id = $1 RETURNING `+paymentColumns,
			current.ID, status, nullIfEmpty(upd.PaymentIntentID), nullIfEmpty(upd.CustomerEmail),
			nullIfEmpty(upd.FailureReason)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListPayments returns the latest payments matching the filter.
func (ps *PostgresStorage) ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, error) {
	rows, err := ps.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR provider = $2)
		ORDER BY created_at DESC LIMIT $3`, f.Status, f.Provider, limitOrDefault(f.Limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Payment, error) {
		p, err := scanPayment(row)
		if err != nil {
			return Payment{}, err
		}
		return *p, nil
	})
}

// PaymentSummary aggregates payment counts and succeeded volume, overall and
// since the given time.
func (ps *PostgresStorage) PaymentSummary(ctx context.Context, since time.Time) (*PaymentSummary, error) {
	summary := &PaymentSummary{
		ByStatus:      map[string]int64{},
		ByProvider:    map[string]int64{},
		Volume:        []CurrencyAmount{},
		Last24hVolume: []CurrencyAmount{},
	}
	rows, err := ps.pool.Query(ctx, `SELECT status, provider, COUNT(*) FROM payments GROUP BY status, provider`)
	if err != nil {
		return nil, err
	}
	var status, provider string
	var count int64
	_, err = pgx.ForEachRow(rows, []any{&status, &provider, &count}, func() error {
		summary.ByStatus[status] += count
		summary.ByProvider[provider] += count
		summary.TotalCount += count
		return nil
	})
	if err != nil {
		return nil, err
	}

	volume := func(from time.Time) ([]CurrencyAmount, error) {
		rows, err := ps.pool.Query(ctx, `SELECT currency, COALESCE(SUM(amount_cents), 0)::bigint
			FROM payments WHERE status = $1 AND created_at >= $2
			GROUP BY currency ORDER BY currency`, PaymentSucceeded, from)
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (CurrencyAmount, error) {
			var ca CurrencyAmount
			if err := row.Scan(&ca.Currency, &ca.AmountCents); err != nil {
				return ca, err
			}
			ca.Amount = internal.CentsToDecimal(ca.AmountCents, ca.Currency).String()
			return ca, nil
		})
	}
	if summary.Volume, err = volume(time.Unix(0, 0)); err != nil {
		return nil, err
	}
	if summary.Last24hVolume, err = volume(since); err != nil {
		return nil, err
	}
	return summary, nil
}

// CountPendingPaymentsBefore counts payments still pending that were created
// before the given time.
func (ps *PostgresStorage) CountPendingPaymentsBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := ps.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE status = $1 AND created_at < $2`,
		PaymentPending, before).Scan(&n)
	return n, err
}
