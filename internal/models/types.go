package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one payment attempt at the aggregator, keyed by the
// externally visible identifier generated at initiation time.
type Transaction struct {
	TransactionID string            `json:"transaction_id"`
	OrderID       *int64            `json:"order_id,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      Currency          `json:"currency"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	OperatorID    string            `json:"operator_id,omitempty"`
	Status        TransactionStatus `json:"status"`
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
	CustomerPhone string            `json:"customer_phone"`
	// ProviderMetadata holds the raw aggregator response for audit/debug.
	ProviderMetadata json.RawMessage `json:"provider_metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// Order is the commercial record of what was purchased, independent of how
// payment was collected. A manual/guest order may have no user.
type Order struct {
	ID            int64           `json:"id"`
	OrderNumber   string          `json:"order_number"`
	UserID        *int64          `json:"user_id,omitempty"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	TotalUSD      decimal.Decimal `json:"total_usd"`
	TotalCDF      decimal.Decimal `json:"total_cdf"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone"`
	AdminNotes    string          `json:"admin_notes,omitempty"`
	Items         []OrderItem     `json:"items,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderItem is one line of an order. Unit prices are copied from the trusted
// service catalog at creation time, never taken from the client.
type OrderItem struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	ServiceID    int64           `json:"service_id"`
	ServiceName  string          `json:"service_name"`
	Quantity     int64           `json:"quantity"`
	TargetLink   string          `json:"target_link"`
	UnitPriceUSD decimal.Decimal `json:"unit_price_usd"`
	UnitPriceCDF decimal.Decimal `json:"unit_price_cdf"`
	TotalUSD     decimal.Decimal `json:"total_usd"`
	TotalCDF     decimal.Decimal `json:"total_cdf"`
}

// Service is a catalog entry. Its prices are the only trusted pricing source.
type Service struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	UnitPriceUSD decimal.Decimal `json:"unit_price_usd"`
	UnitPriceCDF decimal.Decimal `json:"unit_price_cdf"`
	Active       bool            `json:"active"`
}

// WebhookEvent is the immutable audit record of one inbound aggregator call.
// A row is written before processing starts and updated exactly once when
// processing concludes.
type WebhookEvent struct {
	ID               uuid.UUID  `json:"id"`
	Provider         string     `json:"provider"`
	TransactionID    string     `json:"transaction_id,omitempty"`
	Payload          string     `json:"payload"`
	Headers          string     `json:"headers"`
	ClientIP         string     `json:"client_ip"`
	ReceivedAt       time.Time  `json:"received_at"`
	Processed        bool       `json:"processed"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	ProcessingTimeMs *int64     `json:"processing_time_ms,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

// WebhookOutcome is the final processing result recorded against an audit row.
type WebhookOutcome struct {
	Processed        bool
	ErrorMessage     string
	ProcessingTimeMs int64
	Notes            string
}

// ReconcileResult is what the webhook endpoint echoes back to the aggregator.
type ReconcileResult struct {
	TransactionID string            `json:"transactionId"`
	Status        TransactionStatus `json:"status"`
	OrderNumber   string            `json:"orderNumber,omitempty"`
	Duplicate     bool              `json:"-"`
	Stale         bool              `json:"-"`
	Overrode      TransactionStatus `json:"-"`
	ProcessedAt   time.Time         `json:"processedAt"`
}

// StatusFlags is the derived success/pending/failed triple for client polling.
type StatusFlags struct {
	IsSuccess bool `json:"isSuccess"`
	IsPending bool `json:"isPending"`
	IsFailed  bool `json:"isFailed"`
}

// TransactionSnapshot is the read-only projection served to polling clients.
// Customer contact is redacted before it leaves the service.
type TransactionSnapshot struct {
	TransactionID string            `json:"transactionId"`
	Status        TransactionStatus `json:"status"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      Currency          `json:"currency"`
	PaymentMethod string            `json:"paymentMethod,omitempty"`
	CustomerName  string            `json:"customerName"`
	CustomerEmail string            `json:"customerEmail"`
	CustomerPhone string            `json:"customerPhone"`
	CreatedAt     time.Time         `json:"createdAt"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
}

// OrderSnapshot is the order projection attached to a status response.
type OrderSnapshot struct {
	OrderNumber   string          `json:"orderNumber"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	TotalUSD      decimal.Decimal `json:"totalUsd"`
	TotalCDF      decimal.Decimal `json:"totalCdf"`
	Items         []OrderItem     `json:"items,omitempty"`
}

// StatusResponse is the full payload returned by the status query endpoint.
type StatusResponse struct {
	Success     bool                 `json:"success"`
	Transaction *TransactionSnapshot `json:"transaction"`
	Order       *OrderSnapshot       `json:"order"`
	Status      StatusView           `json:"status"`
}

// StatusView bundles the flags with the human-readable hint for the UI.
type StatusView struct {
	StatusFlags
	Message    string `json:"message"`
	NextAction string `json:"nextAction"`
}
