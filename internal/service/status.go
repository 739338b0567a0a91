package service

import (
	"context"
	"errors"

	"github.com/okitshop/paycore/internal/cinetpay"
	"github.com/okitshop/paycore/internal/models"
	"github.com/okitshop/paycore/internal/store"
	"go.uber.org/zap"
)

// TransactionReader is the slice of the store the status query needs.
type TransactionReader interface {
	GetTransactionWithOrder(ctx context.Context, transactionID string) (*models.Transaction, *models.Order, error)
}

// StatusChecker queries the aggregator for its view of a transaction.
type StatusChecker interface {
	CheckPayment(ctx context.Context, transactionID string) (*cinetpay.CheckResult, error)
}

// StatusApplier lets the status path promote a transaction the aggregator
// reports as settled but whose webhook has not landed yet.
type StatusApplier interface {
	Apply(ctx context.Context, transactionID string, incoming models.TransactionStatus, update ProviderUpdate) (*models.ReconcileResult, error)
}

// StatusService is the read-only projection behind client polling. It never
// caches: every call re-reads the database, since webhooks race against the
// polling client for the same ground truth.
type StatusService struct {
	reader  TransactionReader
	checker StatusChecker
	applier StatusApplier
	logger  *zap.Logger
}

func NewStatusService(reader TransactionReader, checker StatusChecker, applier StatusApplier, logger *zap.Logger) *StatusService {
	return &StatusService{reader: reader, checker: checker, applier: applier, logger: logger}
}

// Get assembles the status response for one transaction id.
func (s *StatusService) Get(ctx context.Context, transactionID string) (*models.StatusResponse, error) {
	t, order, err := s.reader.GetTransactionWithOrder(ctx, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	// A still-pending transaction may already be settled on the aggregator
	// side. The check call is bounded by the client's own timeout; any
	// failure here degrades to serving the stored state.
	if t.Status == models.TxPending && s.checker != nil {
		if refreshed, refreshedOrder, ok := s.refresh(ctx, t); ok {
			t, order = refreshed, refreshedOrder
		}
	}

	snapshot := models.TransactionSnapshot{
		TransactionID: t.TransactionID,
		Status:        t.Status,
		Amount:        t.Amount,
		Currency:      t.Currency,
		PaymentMethod: t.PaymentMethod,
		CustomerName:  t.CustomerName,
		CustomerEmail: t.CustomerEmail,
		CustomerPhone: t.CustomerPhone,
		CreatedAt:     t.CreatedAt,
		CompletedAt:   t.CompletedAt,
	}.Redact()

	resp := &models.StatusResponse{
		Success:     true,
		Transaction: &snapshot,
		Status:      models.ViewFor(t.Status),
	}
	if order != nil {
		resp.Order = &models.OrderSnapshot{
			OrderNumber:   order.OrderNumber,
			Status:        order.Status,
			PaymentStatus: order.PaymentStatus,
			TotalUSD:      order.TotalUSD,
			TotalCDF:      order.TotalCDF,
			Items:         order.Items,
		}
	}
	return resp, nil
}

func (s *StatusService) refresh(ctx context.Context, t *models.Transaction) (*models.Transaction, *models.Order, bool) {
	check, err := s.checker.CheckPayment(ctx, t.TransactionID)
	if err != nil {
		s.logger.Debug("aggregator status check failed",
			zap.String("transaction_id", t.TransactionID), zap.Error(err))
		return nil, nil, false
	}

	incoming, ok := models.NormalizeStatus(check.Status)
	if !ok || incoming == t.Status {
		return nil, nil, false
	}

	_, err = s.applier.Apply(ctx, t.TransactionID, incoming, ProviderUpdate{
		PaymentMethod: check.PaymentMethod,
		OperatorID:    check.OperatorID,
		Metadata:      check.Raw,
	})
	if err != nil {
		s.logger.Warn("status refresh apply failed",
			zap.String("transaction_id", t.TransactionID), zap.Error(err))
		return nil, nil, false
	}

	refreshed, order, err := s.reader.GetTransactionWithOrder(ctx, t.TransactionID)
	if err != nil {
		return nil, nil, false
	}
	return refreshed, order, true
}
