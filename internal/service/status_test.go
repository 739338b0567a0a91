package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okitshop/paycore/internal/cinetpay"
	"github.com/okitshop/paycore/internal/models"
	"github.com/okitshop/paycore/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MockReader implements TransactionReader for testing.
type MockReader struct {
	GetFunc   func(ctx context.Context, transactionID string) (*models.Transaction, *models.Order, error)
	CallCount int
}

func (m *MockReader) GetTransactionWithOrder(ctx context.Context, transactionID string) (*models.Transaction, *models.Order, error) {
	m.CallCount++
	if m.GetFunc != nil {
		return m.GetFunc(ctx, transactionID)
	}
	return nil, nil, store.ErrTransactionNotFound
}

// MockChecker implements StatusChecker for testing.
type MockChecker struct {
	CheckFunc func(ctx context.Context, transactionID string) (*cinetpay.CheckResult, error)
	CallCount int
}

func (m *MockChecker) CheckPayment(ctx context.Context, transactionID string) (*cinetpay.CheckResult, error) {
	m.CallCount++
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, transactionID)
	}
	return nil, errors.New("no checker configured")
}

// MockApplier implements StatusApplier for testing.
type MockApplier struct {
	ApplyFunc func(ctx context.Context, transactionID string, incoming models.TransactionStatus, update ProviderUpdate) (*models.ReconcileResult, error)
	CallCount int
	LastApply models.TransactionStatus
}

func (m *MockApplier) Apply(ctx context.Context, transactionID string, incoming models.TransactionStatus, update ProviderUpdate) (*models.ReconcileResult, error) {
	m.CallCount++
	m.LastApply = incoming
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, transactionID, incoming, update)
	}
	return &models.ReconcileResult{TransactionID: transactionID, Status: incoming, ProcessedAt: time.Now()}, nil
}

func acceptedTransaction() *models.Transaction {
	return &models.Transaction{
		TransactionID: "OKIT1",
		Amount:        decimal.RequireFromString("14000.00"),
		Currency:      models.CurrencyCDF,
		Status:        models.TxAccepted,
		CustomerName:  "Jean Kalala",
		CustomerEmail: "jean@example.com",
		CustomerPhone: "+243991234567",
		CreatedAt:     time.Now(),
	}
}

func TestStatusGetAccepted(t *testing.T) {
	orderID := int64(7)
	reader := &MockReader{GetFunc: func(ctx context.Context, id string) (*models.Transaction, *models.Order, error) {
		tx := acceptedTransaction()
		tx.OrderID = &orderID
		return tx, &models.Order{
			ID: orderID, OrderNumber: "CMD-1",
			Status: models.OrderProcessing, PaymentStatus: models.PaymentPaid,
			TotalCDF: decimal.RequireFromString("14000.00"),
		}, nil
	}}
	checker := &MockChecker{}
	svc := NewStatusService(reader, checker, &MockApplier{}, zap.NewNop())

	resp, err := svc.Get(context.Background(), "OKIT1")
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Status.IsSuccess || resp.Status.IsPending || resp.Status.IsFailed {
		t.Errorf("flags = %+v", resp.Status.StatusFlags)
	}
	if resp.Order == nil || resp.Order.Status != models.OrderProcessing {
		t.Errorf("order = %+v", resp.Order)
	}
	if checker.CallCount != 0 {
		t.Error("terminal transaction should not hit the aggregator")
	}
	if resp.Transaction.CustomerEmail == "jean@example.com" {
		t.Error("contact not redacted")
	}
	if resp.Transaction.CustomerPhone == "+243991234567" {
		t.Error("phone not redacted")
	}
}

func TestStatusGetNotFound(t *testing.T) {
	svc := NewStatusService(&MockReader{}, &MockChecker{}, &MockApplier{}, zap.NewNop())

	_, err := svc.Get(context.Background(), "TX-GHOST")
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Errorf("err = %v, want ErrTransactionNotFound", err)
	}
}

func TestStatusPendingRefreshPromotes(t *testing.T) {
	applied := false
	reader := &MockReader{GetFunc: func(ctx context.Context, id string) (*models.Transaction, *models.Order, error) {
		tx := acceptedTransaction()
		if !applied {
			tx.Status = models.TxPending
		}
		return tx, nil, nil
	}}
	checker := &MockChecker{CheckFunc: func(ctx context.Context, id string) (*cinetpay.CheckResult, error) {
		return &cinetpay.CheckResult{Status: "ACCEPTED", PaymentMethod: "OM"}, nil
	}}
	applier := &MockApplier{ApplyFunc: func(ctx context.Context, id string, incoming models.TransactionStatus, update ProviderUpdate) (*models.ReconcileResult, error) {
		applied = true
		return &models.ReconcileResult{TransactionID: id, Status: incoming, ProcessedAt: time.Now()}, nil
	}}
	svc := NewStatusService(reader, checker, applier, zap.NewNop())

	resp, err := svc.Get(context.Background(), "OKIT1")
	if err != nil {
		t.Fatal(err)
	}
	if applier.CallCount != 1 || applier.LastApply != models.TxAccepted {
		t.Errorf("applier calls = %d last = %s", applier.CallCount, applier.LastApply)
	}
	if !resp.Status.IsSuccess {
		t.Errorf("flags after refresh = %+v", resp.Status.StatusFlags)
	}
}

func TestStatusPendingRefreshDegradesOnCheckFailure(t *testing.T) {
	reader := &MockReader{GetFunc: func(ctx context.Context, id string) (*models.Transaction, *models.Order, error) {
		tx := acceptedTransaction()
		tx.Status = models.TxPending
		return tx, nil, nil
	}}
	checker := &MockChecker{} // errors by default
	applier := &MockApplier{}
	svc := NewStatusService(reader, checker, applier, zap.NewNop())

	resp, err := svc.Get(context.Background(), "OKIT1")
	if err != nil {
		t.Fatalf("check failure must not fail the query: %v", err)
	}
	if !resp.Status.IsPending {
		t.Errorf("flags = %+v, want pending", resp.Status.StatusFlags)
	}
	if applier.CallCount != 0 {
		t.Error("nothing should be applied when the check fails")
	}
}

func TestStatusPendingRefreshIgnoresSameStatus(t *testing.T) {
	reader := &MockReader{GetFunc: func(ctx context.Context, id string) (*models.Transaction, *models.Order, error) {
		tx := acceptedTransaction()
		tx.Status = models.TxPending
		return tx, nil, nil
	}}
	checker := &MockChecker{CheckFunc: func(ctx context.Context, id string) (*cinetpay.CheckResult, error) {
		return &cinetpay.CheckResult{Status: "WAITING_CUSTOMER_PAYMENT"}, nil
	}}
	applier := &MockApplier{}
	svc := NewStatusService(reader, checker, applier, zap.NewNop())

	if _, err := svc.Get(context.Background(), "OKIT1"); err != nil {
		t.Fatal(err)
	}
	if applier.CallCount != 0 {
		t.Error("still-pending check result must not trigger an apply")
	}
}
