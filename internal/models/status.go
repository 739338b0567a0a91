package models

import "strings"

// TransactionStatus is the payment state machine. PENDING is the only
// non-terminal state; status never moves backwards without a manual override.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxAccepted  TransactionStatus = "ACCEPTED"
	TxRefused   TransactionStatus = "REFUSED"
	TxCancelled TransactionStatus = "CANCELLED"
)

// IsTerminal reports whether no further webhook should normally move s.
func (s TransactionStatus) IsTerminal() bool {
	return s == TxAccepted || s == TxRefused || s == TxCancelled
}

// OrderStatus tracks fulfilment, separate from payment state. An order can be
// PROCESSING while its payment is already ACCEPTED.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// PaymentStatus is the order-level payment flag.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Currency is one of the two storefront currencies.
type Currency string

const (
	CurrencyCDF Currency = "CDF"
	CurrencyUSD Currency = "USD"
)

// NormalizeStatus maps an aggregator result code or status label to a
// transaction status. CinetPay reports either a textual cpm_trans_status
// (ACCEPTED/REFUSED/CANCELED) or a numeric cpm_result ("00" = success).
// Unrecognized values return ok=false and must be skipped, never guessed.
func NormalizeStatus(raw string) (TransactionStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ACCEPTED", "SUCCES", "SUCCESS", "00":
		return TxAccepted, true
	case "REFUSED", "FAILED", "ECHEC":
		return TxRefused, true
	case "CANCELED", "CANCELLED", "ANNULE":
		return TxCancelled, true
	case "PENDING", "WAITING_CUSTOMER_PAYMENT":
		return TxPending, true
	default:
		return "", false
	}
}

// TransitionKind classifies what the reconciler must do with an incoming
// status relative to the stored one.
type TransitionKind int

const (
	// TransitionApply is a normal forward move; side effects run once.
	TransitionApply TransitionKind = iota
	// TransitionDuplicate means the incoming status equals the stored one:
	// a retried delivery, answered as success without re-running anything.
	TransitionDuplicate
	// TransitionOverride is a conflicting terminal-to-terminal move. It is
	// applied, but callers must log it and mark the audit row.
	TransitionOverride
	// TransitionStale is a non-terminal status arriving after the
	// transaction already reached a terminal state: a late or out-of-order
	// delivery. It is skipped with a warning; a terminal transaction never
	// moves back to PENDING without a manual override.
	TransitionStale
)

// ClassifyTransition implements the idempotency-by-comparison rule: equal
// statuses are duplicates, terminal-to-terminal conflicts are overrides,
// terminal-to-pending is stale, everything else is a plain apply.
func ClassifyTransition(current, incoming TransactionStatus) TransitionKind {
	if current == incoming {
		return TransitionDuplicate
	}
	if current.IsTerminal() {
		if !incoming.IsTerminal() {
			return TransitionStale
		}
		return TransitionOverride
	}
	return TransitionApply
}

// OrderEffect describes how a newly applied transaction status reflects onto
// the linked order.
type OrderEffect struct {
	Status        OrderStatus
	KeepStatus    bool // REFUSED leaves order status alone so the customer can retry
	PaymentStatus PaymentStatus
	MarkPaid      bool
}

// OrderEffectFor returns the order-side mutation for a transaction status.
// The bool is false when the status carries no order effect (PENDING).
func OrderEffectFor(status TransactionStatus) (OrderEffect, bool) {
	switch status {
	case TxAccepted:
		return OrderEffect{Status: OrderProcessing, PaymentStatus: PaymentPaid, MarkPaid: true}, true
	case TxRefused:
		return OrderEffect{KeepStatus: true, PaymentStatus: PaymentFailed}, true
	case TxCancelled:
		return OrderEffect{Status: OrderCancelled, PaymentStatus: PaymentCancelled}, true
	default:
		return OrderEffect{}, false
	}
}

// Flags derives the polling triple from a transaction status.
func (s TransactionStatus) Flags() StatusFlags {
	return StatusFlags{
		IsSuccess: s == TxAccepted,
		IsPending: s == TxPending,
		IsFailed:  s == TxRefused || s == TxCancelled,
	}
}

// statusMessages is the fixed set of user-visible messages; raw internal
// errors never reach the customer.
var statusMessages = map[TransactionStatus]StatusView{
	TxPending: {
		Message:    "Paiement en attente de confirmation.",
		NextAction: "wait",
	},
	TxAccepted: {
		Message:    "Paiement confirmé. Votre commande est en cours de traitement.",
		NextAction: "view_order",
	},
	TxRefused: {
		Message:    "Le paiement a été refusé par l'opérateur.",
		NextAction: "retry_payment",
	},
	TxCancelled: {
		Message:    "Le paiement a été annulé.",
		NextAction: "new_order",
	},
}

// ViewFor returns the status view (flags plus UI hint) for a status.
func ViewFor(status TransactionStatus) StatusView {
	view, ok := statusMessages[status]
	if !ok {
		view = statusMessages[TxPending]
	}
	view.StatusFlags = status.Flags()
	return view
}
