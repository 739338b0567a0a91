// Package notify delivers post-commit payment notifications. Delivery is
// best-effort: a failed notification is logged and swallowed, never rolled
// back into the state transition or surfaced on the webhook response.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TopicCustomerNotifications = "payment.notifications"
	TopicAdminAlerts           = "payment.admin-alerts"
)

// PaymentEvent is the message published for both customer and admin channels.
type PaymentEvent struct {
	TransactionID string    `json:"transaction_id"`
	OrderNumber   string    `json:"order_number,omitempty"`
	Status        string    `json:"status"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Notifier fans a reconciled payment out to the customer and admin channels.
type Notifier interface {
	NotifyCustomer(ctx context.Context, evt PaymentEvent)
	NotifyAdmin(ctx context.Context, evt PaymentEvent)
}

// KafkaNotifier publishes events to the notification topics consumed by the
// mailer and the admin back-office. Writers are async so publication never
// blocks the webhook response.
type KafkaNotifier struct {
	customer *kafka.Writer
	admin    *kafka.Writer
	logger   *zap.Logger
}

func NewKafkaNotifier(broker string, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		customer: newWriter(broker, TopicCustomerNotifications),
		admin:    newWriter(broker, TopicAdminAlerts),
		logger:   logger,
	}
}

func newWriter(broker, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
	}
}

func (n *KafkaNotifier) Close() error {
	cerr := n.customer.Close()
	if err := n.admin.Close(); err != nil {
		return err
	}
	return cerr
}

func (n *KafkaNotifier) NotifyCustomer(ctx context.Context, evt PaymentEvent) {
	n.publish(ctx, n.customer, evt)
}

func (n *KafkaNotifier) NotifyAdmin(ctx context.Context, evt PaymentEvent) {
	n.publish(ctx, n.admin, evt)
}

func (n *KafkaNotifier) publish(ctx context.Context, w *kafka.Writer, evt PaymentEvent) {
	value, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error("notification marshal failed",
			zap.String("transaction_id", evt.TransactionID), zap.Error(err))
		return
	}
	msg := kafka.Message{Key: []byte(evt.TransactionID), Value: value}
	if err := w.WriteMessages(ctx, msg); err != nil {
		n.logger.Warn("notification publish failed",
			zap.String("topic", w.Topic),
			zap.String("transaction_id", evt.TransactionID),
			zap.Error(err))
	}
}

// Noop drops all notifications. Used in development when no broker is
// configured, and in tests that only count calls.
type Noop struct{}

func (Noop) NotifyCustomer(context.Context, PaymentEvent) {}
func (Noop) NotifyAdmin(context.Context, PaymentEvent)    {}
