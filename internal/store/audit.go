package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/okitshop/paycore/internal/models"
)

// RecordReceived appends an audit row for an inbound webhook before any
// processing runs, so a crash mid-processing still leaves a trace. The
// transaction id may be empty when the payload never resolved to one.
func (s *Store) RecordReceived(ctx context.Context, provider, transactionID, payload, headers, clientIP string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.Db.Exec(ctx, `
		INSERT INTO webhook_events (id, provider, transaction_id, payload, headers, client_ip, processed)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, false)`,
		id, provider, transactionID, payload, headers, clientIP)
	if err != nil {
		return uuid.Nil, fmt.Errorf("webhook audit insert failed: %w", err)
	}
	return id, nil
}

// RecordOutcome closes an audit row once processing concludes, success or
// failure. Called exactly once per received webhook.
func (s *Store) RecordOutcome(ctx context.Context, auditID uuid.UUID, outcome models.WebhookOutcome) error {
	_, err := s.Db.Exec(ctx, `
		UPDATE webhook_events
		SET processed = $2, error_message = NULLIF($3, ''), processing_time_ms = $4,
		    notes = $5, processed_at = now()
		WHERE id = $1`,
		auditID, outcome.Processed, outcome.ErrorMessage, outcome.ProcessingTimeMs, outcome.Notes)
	if err != nil {
		return fmt.Errorf("webhook audit update failed: %w", err)
	}
	return nil
}
