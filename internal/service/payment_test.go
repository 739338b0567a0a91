package service

import (
	"context"
	"errors"
	"testing"

	"github.com/okitshop/paycore/internal/cinetpay"
	"github.com/okitshop/paycore/internal/models"
	"github.com/okitshop/paycore/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MockCheckoutStore implements CheckoutStore for testing.
type MockCheckoutStore struct {
	Services     map[int64]*models.Service
	CreatedOrder *models.Order
	CreatedTx    *models.Transaction
}

func (m *MockCheckoutStore) GetActiveService(ctx context.Context, id int64) (*models.Service, error) {
	if svc, ok := m.Services[id]; ok {
		return svc, nil
	}
	return nil, store.ErrServiceNotFound
}

func (m *MockCheckoutStore) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	totalUSD, totalCDF, items := models.PriceItems(order.Items)
	order.ID = 42
	order.TotalUSD = totalUSD
	order.TotalCDF = totalCDF
	order.Items = items
	m.CreatedOrder = order
	return order, nil
}

func (m *MockCheckoutStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	t.Status = models.TxPending
	m.CreatedTx = t
	return nil
}

// MockGateway implements PaymentGateway for testing.
type MockGateway struct {
	InitiateFunc func(ctx context.Context, transactionID, amount, currency, description string) (*cinetpay.InitResult, error)
	LastAmount   string
	LastCurrency string
}

func (m *MockGateway) InitiatePayment(ctx context.Context, transactionID, amount, currency, description string) (*cinetpay.InitResult, error) {
	m.LastAmount = amount
	m.LastCurrency = currency
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, transactionID, amount, currency, description)
	}
	return &cinetpay.InitResult{PaymentURL: "https://checkout.example/pay", PaymentToken: "tok"}, nil
}

func catalogStore() *MockCheckoutStore {
	return &MockCheckoutStore{Services: map[int64]*models.Service{
		1: {ID: 1, Name: "Abonnés Instagram x1000",
			UnitPriceUSD: decimal.RequireFromString("5.00"),
			UnitPriceCDF: decimal.RequireFromString("14000.00"), Active: true},
	}}
}

func TestInitiateBuildsPendingTransaction(t *testing.T) {
	st := catalogStore()
	gw := &MockGateway{}
	svc := NewPaymentService(st, gw, zap.NewNop())

	result, err := svc.Initiate(context.Background(), InitiateRequest{
		Currency:      models.CurrencyCDF,
		CustomerName:  "Jean",
		CustomerPhone: "+243991234567",
		Items:         []InitiateItem{{ServiceID: 1, Quantity: 2, TargetLink: "https://instagram.com/x"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if st.CreatedOrder == nil || st.CreatedTx == nil {
		t.Fatal("order or transaction not created")
	}
	// Totals come from the catalog, 2 x 14000 CDF.
	if !st.CreatedOrder.TotalCDF.Equal(decimal.RequireFromString("28000.00")) {
		t.Errorf("order totalCDF = %s", st.CreatedOrder.TotalCDF)
	}
	if !st.CreatedTx.Amount.Equal(st.CreatedOrder.TotalCDF) {
		t.Errorf("transaction amount %s != order total %s", st.CreatedTx.Amount, st.CreatedOrder.TotalCDF)
	}
	if st.CreatedTx.OrderID == nil || *st.CreatedTx.OrderID != st.CreatedOrder.ID {
		t.Error("transaction not linked to order")
	}
	if st.CreatedTx.Status != models.TxPending {
		t.Errorf("transaction status = %s", st.CreatedTx.Status)
	}
	if gw.LastAmount != "28000.00" || gw.LastCurrency != "CDF" {
		t.Errorf("gateway asked for %s %s", gw.LastAmount, gw.LastCurrency)
	}
	if result.PaymentURL == "" || result.TransactionID == "" {
		t.Errorf("result = %+v", result)
	}
}

func TestInitiateUnknownService(t *testing.T) {
	svc := NewPaymentService(catalogStore(), &MockGateway{}, zap.NewNop())

	_, err := svc.Initiate(context.Background(), InitiateRequest{
		Items: []InitiateItem{{ServiceID: 99, Quantity: 1, TargetLink: "https://instagram.com/x"}},
	})
	if !errors.Is(err, store.ErrServiceNotFound) {
		t.Errorf("err = %v, want ErrServiceNotFound", err)
	}
}

func TestInitiateRejectsBadItems(t *testing.T) {
	cases := []struct {
		name string
		item InitiateItem
	}{
		{"negative quantity", InitiateItem{ServiceID: 1, Quantity: -3, TargetLink: "https://instagram.com/x"}},
		{"zero quantity", InitiateItem{ServiceID: 1, Quantity: 0, TargetLink: "https://instagram.com/x"}},
		{"missing target link", InitiateItem{ServiceID: 1, Quantity: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := catalogStore()
			svc := NewPaymentService(st, &MockGateway{}, zap.NewNop())

			_, err := svc.Initiate(context.Background(), InitiateRequest{
				Items: []InitiateItem{tc.item},
			})
			if !errors.Is(err, ErrInvalidItem) {
				t.Errorf("err = %v, want ErrInvalidItem", err)
			}
			if st.CreatedOrder != nil || st.CreatedTx != nil {
				t.Error("invalid item must be rejected before anything is persisted")
			}
		})
	}
}

func TestInitiateEmptyOrderRejected(t *testing.T) {
	svc := NewPaymentService(catalogStore(), &MockGateway{}, zap.NewNop())

	if _, err := svc.Initiate(context.Background(), InitiateRequest{}); !errors.Is(err, ErrEmptyOrder) {
		t.Errorf("err = %v, want ErrEmptyOrder", err)
	}
}

func TestInitiateGatewayFailure(t *testing.T) {
	st := catalogStore()
	gw := &MockGateway{InitiateFunc: func(ctx context.Context, id, amount, currency, desc string) (*cinetpay.InitResult, error) {
		return nil, errors.New("aggregator unreachable")
	}}
	svc := NewPaymentService(st, gw, zap.NewNop())

	_, err := svc.Initiate(context.Background(), InitiateRequest{
		Items: []InitiateItem{{ServiceID: 1, Quantity: 1, TargetLink: "https://instagram.com/x"}},
	})
	if err == nil {
		t.Fatal("gateway failure swallowed")
	}
	// The pending transaction survives for audit even when initiation fails.
	if st.CreatedTx == nil {
		t.Error("pending transaction should have been created before the gateway call")
	}
}
