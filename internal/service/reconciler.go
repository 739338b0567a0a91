package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okitshop/paycore/internal/models"
	"github.com/okitshop/paycore/internal/notify"
	"go.uber.org/zap"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUnknownStatus       = errors.New("unrecognized aggregator status")
)

// Lookup retries cover the window where a webhook lands before the
// transaction-creation write is visible.
const (
	lookupAttempts = 3
	lookupBackoff  = 200 * time.Millisecond
)

// ProviderUpdate is what the aggregator reported alongside the new status.
type ProviderUpdate struct {
	PaymentMethod string
	OperatorID    string
	Metadata      json.RawMessage
}

// Reconciler applies one verified webhook delivery to the stored
// transaction/order pair. The read-compare-write runs inside a single
// database transaction with the transaction row locked, so two overlapping
// deliveries for the same id cannot both pass the status comparison.
type Reconciler struct {
	db       *pgxpool.Pool
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewReconciler(db *pgxpool.Pool, notifier notify.Notifier, logger *zap.Logger) *Reconciler {
	return &Reconciler{db: db, notifier: notifier, logger: logger}
}

// Process reconciles a parsed, signature-verified notification.
func (r *Reconciler) Process(ctx context.Context, n *models.CinetPayNotification) (*models.ReconcileResult, error) {
	incoming, ok := n.Status()
	if !ok {
		// Never map an unknown code to an arbitrary state.
		r.logger.Warn("unrecognized webhook status, transition skipped",
			zap.String("transaction_id", n.TransactionID),
			zap.String("result", n.Result),
			zap.String("trans_status", n.TransStatus))
		return nil, ErrUnknownStatus
	}

	metadata, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("metadata marshal failed: %w", err)
	}

	return r.Apply(ctx, n.TransactionID, incoming, ProviderUpdate{
		PaymentMethod: n.PaymentMethod,
		OperatorID:    n.OperatorID,
		Metadata:      metadata,
	})
}

// Apply moves a transaction to the incoming status and reflects the change
// onto the linked order, atomically. Also used by the status-query path when
// the aggregator's check API reports a terminal state for a still-pending
// transaction.
func (r *Reconciler) Apply(ctx context.Context, transactionID string, incoming models.TransactionStatus, update ProviderUpdate) (*models.ReconcileResult, error) {
	var result *models.ReconcileResult
	var err error
	for attempt := 0; attempt < lookupAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(lookupBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		result, err = r.apply(ctx, transactionID, incoming, update)
		if !errors.Is(err, ErrTransactionNotFound) {
			break
		}
	}
	return result, err
}

func (r *Reconciler) apply(ctx context.Context, transactionID string, incoming models.TransactionStatus, update ProviderUpdate) (*models.ReconcileResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the transaction row for the whole read-compare-write.
	var current models.TransactionStatus
	var orderID *int64
	var customerEmail, customerPhone, amount, currency string
	err = tx.QueryRow(ctx, `
		SELECT status, order_id, customer_email, customer_phone, amount::text, currency
		FROM transactions WHERE transaction_id = $1 FOR UPDATE`, transactionID).
		Scan(&current, &orderID, &customerEmail, &customerPhone, &amount, &currency)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction lock failed: %w", err)
	}

	var orderNumber string
	if orderID != nil {
		err = tx.QueryRow(ctx, `SELECT order_number FROM orders WHERE id = $1`, *orderID).Scan(&orderNumber)
		if err != nil {
			return nil, fmt.Errorf("order lookup failed: %w", err)
		}
	}

	result := &models.ReconcileResult{
		TransactionID: transactionID,
		Status:        incoming,
		OrderNumber:   orderNumber,
		ProcessedAt:   time.Now().UTC(),
	}

	switch models.ClassifyTransition(current, incoming) {
	case models.TransitionDuplicate:
		// Retried delivery; answer success so the aggregator stops, run nothing.
		result.Duplicate = true
		return result, nil
	case models.TransitionStale:
		// Late non-terminal delivery after the transaction already settled.
		// The stored state wins; answering success stops the redelivery.
		result.Stale = true
		result.Status = current
		r.logger.Warn("stale non-terminal webhook ignored",
			zap.String("transaction_id", transactionID),
			zap.String("stored", string(current)),
			zap.String("incoming", string(incoming)))
		return result, nil
	case models.TransitionOverride:
		result.Overrode = current
		r.logger.Warn("terminal status overridden by conflicting webhook",
			zap.String("transaction_id", transactionID),
			zap.String("stored", string(current)),
			zap.String("incoming", string(incoming)))
	}

	var completedAt *time.Time
	if incoming.IsTerminal() {
		now := result.ProcessedAt
		completedAt = &now
	}
	_, err = tx.Exec(ctx, `
		UPDATE transactions
		SET status = $2,
		    payment_method = COALESCE(NULLIF($3, ''), payment_method),
		    operator_id = COALESCE(NULLIF($4, ''), operator_id),
		    provider_metadata = COALESCE($5, provider_metadata),
		    completed_at = COALESCE($6, completed_at)
		WHERE transaction_id = $1`,
		transactionID, incoming, update.PaymentMethod, update.OperatorID, update.Metadata, completedAt)
	if err != nil {
		return nil, fmt.Errorf("transaction update failed: %w", err)
	}

	if orderID != nil {
		if effect, ok := models.OrderEffectFor(incoming); ok {
			if err := applyOrderEffect(ctx, tx, *orderID, effect, update); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}

	// Side effects only after the transition is durable.
	evt := notify.PaymentEvent{
		TransactionID: transactionID,
		OrderNumber:   orderNumber,
		Status:        string(incoming),
		Amount:        amount,
		Currency:      currency,
		PaymentMethod: update.PaymentMethod,
		CustomerEmail: customerEmail,
		CustomerPhone: customerPhone,
		OccurredAt:    result.ProcessedAt,
	}
	if incoming == models.TxAccepted {
		r.notifier.NotifyCustomer(ctx, evt)
	}
	r.notifier.NotifyAdmin(ctx, evt)

	r.logger.Info("webhook reconciled",
		zap.String("transaction_id", transactionID),
		zap.String("from", string(current)),
		zap.String("to", string(incoming)),
		zap.String("order_number", orderNumber))

	return result, nil
}

func applyOrderEffect(ctx context.Context, tx pgx.Tx, orderID int64, effect models.OrderEffect, update ProviderUpdate) error {
	var err error
	if effect.MarkPaid {
		note := "Paiement mobile money confirmé"
		if update.OperatorID != "" {
			note = fmt.Sprintf("%s (opérateur %s)", note, update.OperatorID)
		}
		_, err = tx.Exec(ctx, `
			UPDATE orders
			SET status = $2, payment_status = $3,
			    payment_method = COALESCE(NULLIF($4, ''), payment_method),
			    paid_at = now(),
			    admin_notes = TRIM(admin_notes || E'\n' || $5)
			WHERE id = $1`,
			orderID, effect.Status, effect.PaymentStatus, update.PaymentMethod, note)
	} else if effect.KeepStatus {
		_, err = tx.Exec(ctx, `UPDATE orders SET payment_status = $2 WHERE id = $1`,
			orderID, effect.PaymentStatus)
	} else {
		_, err = tx.Exec(ctx, `UPDATE orders SET status = $2, payment_status = $3 WHERE id = $1`,
			orderID, effect.Status, effect.PaymentStatus)
	}
	if err != nil {
		return fmt.Errorf("order update failed: %w", err)
	}
	return nil
}
