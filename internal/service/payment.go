package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okitshop/paycore/internal/cinetpay"
	"github.com/okitshop/paycore/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrEmptyOrder  = errors.New("order has no items")
	ErrInvalidItem = errors.New("order item is invalid")
)

// CheckoutStore is the slice of the store the initiation path needs.
type CheckoutStore interface {
	GetActiveService(ctx context.Context, id int64) (*models.Service, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateTransaction(ctx context.Context, t *models.Transaction) error
}

// PaymentGateway registers a pending payment with the aggregator.
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, transactionID, amount, currency, description string) (*cinetpay.InitResult, error)
}

// InitiateRequest is the checkout payload. Client-submitted prices are
// deliberately absent: pricing always comes from the service catalog.
type InitiateRequest struct {
	UserID        *int64          `json:"user_id,omitempty"`
	Currency      models.Currency `json:"currency"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone"`
	Items         []InitiateItem  `json:"items"`
}

// InitiateItem is one requested line: which service, how much of it, where.
type InitiateItem struct {
	ServiceID  int64  `json:"service_id"`
	Quantity   int64  `json:"quantity"`
	TargetLink string `json:"target_link"`
}

// InitiateResult hands the client everything it needs to send the customer
// to the hosted checkout and start polling.
type InitiateResult struct {
	TransactionID string          `json:"transactionId"`
	OrderNumber   string          `json:"orderNumber"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      models.Currency `json:"currency"`
	PaymentURL    string          `json:"paymentUrl"`
}

// PaymentService creates the order and the pending transaction, then
// registers the payment with the aggregator. The transaction exists before
// the customer ever reaches the checkout page, so the webhook always has
// something to reconcile against.
type PaymentService struct {
	store   CheckoutStore
	gateway PaymentGateway
	logger  *zap.Logger
}

func NewPaymentService(store CheckoutStore, gateway PaymentGateway, logger *zap.Logger) *PaymentService {
	return &PaymentService{store: store, gateway: gateway, logger: logger}
}

func (p *PaymentService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("service %d: quantity %d: %w", line.ServiceID, line.Quantity, ErrInvalidItem)
		}
		if line.TargetLink == "" {
			return nil, fmt.Errorf("service %d: missing target link: %w", line.ServiceID, ErrInvalidItem)
		}
	}
	if req.Currency != models.CurrencyUSD {
		req.Currency = models.CurrencyCDF
	}

	now := time.Now()
	order := &models.Order{
		OrderNumber:   models.NewOrderNumber(now),
		UserID:        req.UserID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
	}
	for _, line := range req.Items {
		svc, err := p.store.GetActiveService(ctx, line.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("service %d: %w", line.ServiceID, err)
		}
		order.Items = append(order.Items, models.OrderItem{
			ServiceID:    svc.ID,
			ServiceName:  svc.Name,
			Quantity:     line.Quantity,
			TargetLink:   line.TargetLink,
			UnitPriceUSD: svc.UnitPriceUSD,
			UnitPriceCDF: svc.UnitPriceCDF,
		})
	}

	order, err := p.store.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}

	amount := order.TotalCDF
	if req.Currency == models.CurrencyUSD {
		amount = order.TotalUSD
	}

	t := &models.Transaction{
		TransactionID: models.NewTransactionID(now),
		OrderID:       &order.ID,
		Amount:        amount,
		Currency:      req.Currency,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
	}
	if err := p.store.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Commande %s", order.OrderNumber)
	init, err := p.gateway.InitiatePayment(ctx, t.TransactionID, amount.StringFixed(2), string(req.Currency), description)
	if err != nil {
		// The pending transaction stays behind for audit; the customer can
		// retry checkout with a fresh one.
		return nil, fmt.Errorf("payment initiation failed: %w", err)
	}

	p.logger.Info("payment initiated",
		zap.String("transaction_id", t.TransactionID),
		zap.String("order_number", order.OrderNumber),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("currency", string(req.Currency)))

	return &InitiateResult{
		TransactionID: t.TransactionID,
		OrderNumber:   order.OrderNumber,
		Amount:        amount,
		Currency:      req.Currency,
		PaymentURL:    init.PaymentURL,
	}, nil
}
