package models

import "testing"

func TestParseNotificationJSON(t *testing.T) {
	body := []byte(`{
		"cpm_site_id": "100001",
		"cpm_trans_id": "OKIT17000000000001",
		"cpm_trans_date": "2025-03-01 10:15:00",
		"cpm_amount": "14000.00",
		"cpm_currency": "CDF",
		"payment_method": "OM",
		"cpm_trans_status": "ACCEPTED",
		"signature": "abc123"
	}`)

	n, err := ParseNotificationJSON(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if n.TransactionID != "OKIT17000000000001" || n.Currency != "CDF" || n.Signature != "abc123" {
		t.Errorf("unexpected fields: %+v", n)
	}
	if err := n.Validate(); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}
	status, ok := n.Status()
	if !ok || status != TxAccepted {
		t.Errorf("Status() = (%q, %v)", status, ok)
	}
}

func TestParseNotificationJSONMalformed(t *testing.T) {
	if _, err := ParseNotificationJSON([]byte(`{not json`)); err == nil {
		t.Error("malformed JSON accepted")
	}
}

func TestParseNotificationForm(t *testing.T) {
	body := []byte("cpm_site_id=100001&cpm_trans_id=OKIT42&cpm_trans_date=2025-03-01+10%3A15%3A00" +
		"&cpm_amount=5.00&cpm_currency=USD&cpm_result=00&payment_method=MP&signature=sig")

	n, err := ParseNotificationForm(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if n.TransactionID != "OKIT42" || n.Amount != "5.00" || n.PaymentMethod != "MP" {
		t.Errorf("unexpected fields: %+v", n)
	}
	if n.TransactionDate != "2025-03-01 10:15:00" {
		t.Errorf("date decoded as %q", n.TransactionDate)
	}
	status, ok := n.Status()
	if !ok || status != TxAccepted {
		t.Errorf("Status() from cpm_result = (%q, %v)", status, ok)
	}
}

func TestValidateMissingFields(t *testing.T) {
	n := &CinetPayNotification{SiteID: "100001", Amount: "5.00", Currency: "USD"}
	if err := n.Validate(); err == nil {
		t.Error("payload without transaction id accepted")
	}
}

func TestStatusPrefersTextualStatus(t *testing.T) {
	// When both are present the textual status wins over the numeric code.
	n := &CinetPayNotification{TransStatus: "REFUSED", Result: "00"}
	status, ok := n.Status()
	if !ok || status != TxRefused {
		t.Errorf("Status() = (%q, %v), want REFUSED", status, ok)
	}

	n = &CinetPayNotification{Result: "00"}
	status, ok = n.Status()
	if !ok || status != TxAccepted {
		t.Errorf("Status() fallback = (%q, %v), want ACCEPTED", status, ok)
	}

	n = &CinetPayNotification{TransStatus: "GARBAGE"}
	if _, ok := n.Status(); ok {
		t.Error("garbage status recognized")
	}
}
