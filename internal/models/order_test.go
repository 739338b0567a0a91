package models

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPriceItemsRecomputesFromUnitPrices(t *testing.T) {
	// The client claimed absurd totals; only unit prices and quantities count.
	items := []OrderItem{
		{
			ServiceID: 1, Quantity: 2,
			UnitPriceUSD: dec("5.00"), UnitPriceCDF: dec("14000.00"),
			TotalUSD: dec("0.01"), TotalCDF: dec("0.01"),
		},
		{
			ServiceID: 2, Quantity: 3,
			UnitPriceUSD: dec("8.00"), UnitPriceCDF: dec("22400.00"),
			TotalUSD: dec("999999.00"), TotalCDF: dec("1.00"),
		},
	}

	totalUSD, totalCDF, priced := PriceItems(items)

	if !totalUSD.Equal(dec("34.00")) {
		t.Errorf("totalUSD = %s, want 34.00", totalUSD)
	}
	if !totalCDF.Equal(dec("95200.00")) {
		t.Errorf("totalCDF = %s, want 95200.00", totalCDF)
	}
	if !priced[0].TotalCDF.Equal(dec("28000.00")) {
		t.Errorf("item 0 totalCDF = %s, want 28000.00", priced[0].TotalCDF)
	}
	if !priced[1].TotalUSD.Equal(dec("24.00")) {
		t.Errorf("item 1 totalUSD = %s, want 24.00", priced[1].TotalUSD)
	}

	// Order totals must equal the sum of recomputed line totals.
	sumUSD, sumCDF := decimal.Zero, decimal.Zero
	for _, item := range priced {
		sumUSD = sumUSD.Add(item.TotalUSD)
		sumCDF = sumCDF.Add(item.TotalCDF)
	}
	if !sumUSD.Equal(totalUSD) || !sumCDF.Equal(totalCDF) {
		t.Errorf("totals (%s, %s) do not match line sums (%s, %s)", totalUSD, totalCDF, sumUSD, sumCDF)
	}
}

func TestPriceItemsEmpty(t *testing.T) {
	totalUSD, totalCDF, priced := PriceItems(nil)
	if !totalUSD.IsZero() || !totalCDF.IsZero() || len(priced) != 0 {
		t.Errorf("empty order priced to (%s, %s, %d items)", totalUSD, totalCDF, len(priced))
	}
}

func TestNewTransactionIDFormat(t *testing.T) {
	id := NewTransactionID(time.Now())
	if !strings.HasPrefix(id, "OKIT") {
		t.Errorf("transaction id %q missing prefix", id)
	}
	if len(id) < 10 {
		t.Errorf("transaction id %q suspiciously short", id)
	}
}

func TestRedact(t *testing.T) {
	snap := TransactionSnapshot{
		CustomerName:  "Jean Kalala",
		CustomerEmail: "jean.kalala@example.com",
		CustomerPhone: "+243991234567",
	}.Redact()

	if snap.CustomerEmail == "jean.kalala@example.com" {
		t.Error("email not redacted")
	}
	if !strings.HasSuffix(snap.CustomerEmail, "@example.com") || !strings.HasPrefix(snap.CustomerEmail, "j") {
		t.Errorf("email redaction mangled domain or first letter: %q", snap.CustomerEmail)
	}
	if !strings.HasSuffix(snap.CustomerPhone, "4567") {
		t.Errorf("phone redaction lost last digits: %q", snap.CustomerPhone)
	}
	if strings.Contains(snap.CustomerPhone, "+24399123") {
		t.Errorf("phone not redacted: %q", snap.CustomerPhone)
	}
	if snap.CustomerName != "Jean Kalala" {
		t.Errorf("name should survive redaction, got %q", snap.CustomerName)
	}
}
