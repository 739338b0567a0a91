package models

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NewTransactionID builds an external transaction identifier. The format is
// caller-chosen per the aggregator contract; it only has to be unique.
func NewTransactionID(now time.Time) string {
	return fmt.Sprintf("OKIT%d%04d", now.UnixMilli(), rand.Intn(10000))
}

// NewOrderNumber builds the human-readable order reference shown to the
// customer and to admins.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("CMD-%s-%04d", now.Format("20060102"), rand.Intn(10000))
}

// PriceItems recomputes every line-item total and both order totals from the
// catalog prices, ignoring any amounts the client submitted. Items must
// already carry the trusted unit prices looked up from the services table.
func PriceItems(items []OrderItem) (totalUSD, totalCDF decimal.Decimal, priced []OrderItem) {
	totalUSD = decimal.Zero
	totalCDF = decimal.Zero
	priced = make([]OrderItem, len(items))
	for i, item := range items {
		qty := decimal.NewFromInt(item.Quantity)
		item.TotalUSD = item.UnitPriceUSD.Mul(qty)
		item.TotalCDF = item.UnitPriceCDF.Mul(qty)
		totalUSD = totalUSD.Add(item.TotalUSD)
		totalCDF = totalCDF.Add(item.TotalCDF)
		priced[i] = item
	}
	return totalUSD, totalCDF, priced
}

// Redact masks the contact fields of a snapshot before it is served to a
// polling client. The endpoint is unauthenticated, so only enough of the
// contact survives for the customer to recognize themselves.
func (t TransactionSnapshot) Redact() TransactionSnapshot {
	t.CustomerEmail = redactEmail(t.CustomerEmail)
	t.CustomerPhone = redactPhone(t.CustomerPhone)
	return t
}

func redactEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 1 {
		return email
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}

func redactPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
