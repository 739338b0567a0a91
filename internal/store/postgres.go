package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okitshop/paycore/internal/models"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrServiceNotFound     = errors.New("service not found")
)

type Store struct {
	Db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// GetTransactionWithOrder reads a transaction and, when linked, its order.
// This is the plain (unlocked) read used by the status query; the reconciler
// does its own locked read inside its unit of work.
func (s *Store) GetTransactionWithOrder(ctx context.Context, transactionID string) (*models.Transaction, *models.Order, error) {
	var t models.Transaction
	err := s.Db.QueryRow(ctx, `
		SELECT transaction_id, order_id, amount, currency, payment_method, operator_id,
		       status, customer_name, customer_email, customer_phone,
		       provider_metadata, created_at, completed_at
		FROM transactions WHERE transaction_id = $1`, transactionID).
		Scan(&t.TransactionID, &t.OrderID, &t.Amount, &t.Currency, &t.PaymentMethod,
			&t.OperatorID, &t.Status, &t.CustomerName, &t.CustomerEmail, &t.CustomerPhone,
			&t.ProviderMetadata, &t.CreatedAt, &t.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, ErrTransactionNotFound
		}
		return nil, nil, fmt.Errorf("transaction query failed: %w", err)
	}

	if t.OrderID == nil {
		return &t, nil, nil
	}

	order, err := s.GetOrder(ctx, *t.OrderID)
	if err != nil {
		return nil, nil, err
	}
	return &t, order, nil
}

// GetOrder reads one order with its line items.
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var o models.Order
	err := s.Db.QueryRow(ctx, `
		SELECT id, order_number, user_id, status, payment_status, payment_method,
		       total_usd, total_cdf, customer_name, customer_email, customer_phone,
		       admin_notes, paid_at, created_at
		FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
			&o.TotalUSD, &o.TotalCDF, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
			&o.AdminNotes, &o.PaidAt, &o.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("order query failed: %w", err)
	}

	rows, err := s.Db.Query(ctx, `
		SELECT id, order_id, service_id, service_name, quantity, target_link,
		       unit_price_usd, unit_price_cdf, total_usd, total_cdf
		FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("order items query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ServiceID, &item.ServiceName,
			&item.Quantity, &item.TargetLink, &item.UnitPriceUSD, &item.UnitPriceCDF,
			&item.TotalUSD, &item.TotalCDF); err != nil {
			return nil, fmt.Errorf("order item scan failed: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	return &o, rows.Err()
}

// GetActiveService reads one catalog row; its prices are the trusted source
// for order line pricing.
func (s *Store) GetActiveService(ctx context.Context, id int64) (*models.Service, error) {
	var svc models.Service
	err := s.Db.QueryRow(ctx, `
		SELECT id, name, unit_price_usd, unit_price_cdf, active
		FROM services WHERE id = $1 AND active = true`, id).
		Scan(&svc.ID, &svc.Name, &svc.UnitPriceUSD, &svc.UnitPriceCDF, &svc.Active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("service query failed: %w", err)
	}
	return &svc, nil
}

// CreateOrder inserts an order and its items in one transaction. Totals and
// line totals are recomputed from the unit prices already resolved against
// the catalog; whatever the client claimed is discarded before this point.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	totalUSD, totalCDF, items := models.PriceItems(order.Items)
	order.TotalUSD = totalUSD
	order.TotalCDF = totalCDF
	order.Items = items

	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, user_id, status, payment_status, payment_method,
		                    total_usd, total_cdf, customer_name, customer_email, customer_phone, admin_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		order.OrderNumber, order.UserID, models.OrderPending, models.PaymentPending,
		order.PaymentMethod, order.TotalUSD, order.TotalCDF,
		order.CustomerName, order.CustomerEmail, order.CustomerPhone, order.AdminNotes).
		Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("order insert failed: %w", err)
	}
	order.Status = models.OrderPending
	order.PaymentStatus = models.PaymentPending

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, service_id, service_name, quantity, target_link,
			                         unit_price_usd, unit_price_cdf, total_usd, total_cdf)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			item.OrderID, item.ServiceID, item.ServiceName, item.Quantity, item.TargetLink,
			item.UnitPriceUSD, item.UnitPriceCDF, item.TotalUSD, item.TotalCDF).
			Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("order item insert failed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return order, nil
}

// CreateTransaction inserts a pending payment attempt with its customer
// snapshot. Transactions are never deleted afterwards.
func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	err := s.Db.QueryRow(ctx, `
		INSERT INTO transactions (transaction_id, order_id, amount, currency, payment_method,
		                          status, customer_name, customer_email, customer_phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		t.TransactionID, t.OrderID, t.Amount, t.Currency, t.PaymentMethod,
		models.TxPending, t.CustomerName, t.CustomerEmail, t.CustomerPhone).
		Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("transaction insert failed: %w", err)
	}
	t.Status = models.TxPending
	return nil
}
