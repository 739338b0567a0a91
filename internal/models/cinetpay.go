package models

import (
	"encoding/json"
	"errors"
	"net/url"
)

// CinetPayNotification is the webhook body CinetPay delivers. The aggregator
// sends JSON on the primary path and form-urlencoded in some send modes, so
// both decodings funnel into this one struct.
type CinetPayNotification struct {
	SiteID          string `json:"cpm_site_id"`
	TransactionID   string `json:"cpm_trans_id"`
	TransactionDate string `json:"cpm_trans_date"`
	Amount          string `json:"cpm_amount"`
	Currency        string `json:"cpm_currency"`
	PaymentMethod   string `json:"payment_method"`
	OperatorID      string `json:"cpm_payid"`
	PhoneNumber     string `json:"cel_phone_num"`
	Result          string `json:"cpm_result"`
	TransStatus     string `json:"cpm_trans_status"`
	ErrorMessage    string `json:"cpm_error_message"`
	Custom          string `json:"cpm_custom"`
	Signature       string `json:"signature"`
}

// ErrMissingFields marks a payload that parsed but cannot be processed.
var ErrMissingFields = errors.New("notification missing required fields")

// ParseNotificationJSON decodes the JSON webhook body.
func ParseNotificationJSON(body []byte) (*CinetPayNotification, error) {
	var n CinetPayNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ParseNotificationForm decodes the form-urlencoded webhook body variant.
func ParseNotificationForm(body []byte) (*CinetPayNotification, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	return &CinetPayNotification{
		SiteID:          values.Get("cpm_site_id"),
		TransactionID:   values.Get("cpm_trans_id"),
		TransactionDate: values.Get("cpm_trans_date"),
		Amount:          values.Get("cpm_amount"),
		Currency:        values.Get("cpm_currency"),
		PaymentMethod:   values.Get("payment_method"),
		OperatorID:      values.Get("cpm_payid"),
		PhoneNumber:     values.Get("cel_phone_num"),
		Result:          values.Get("cpm_result"),
		TransStatus:     values.Get("cpm_trans_status"),
		ErrorMessage:    values.Get("cpm_error_message"),
		Custom:          values.Get("cpm_custom"),
		Signature:       values.Get("signature"),
	}, nil
}

// Validate rejects payloads that do not carry the fields the reconciler and
// signature check need. Anything short of this is treated as malformed, not
// merely unsigned.
func (n *CinetPayNotification) Validate() error {
	if n.SiteID == "" || n.TransactionID == "" || n.Amount == "" || n.Currency == "" {
		return ErrMissingFields
	}
	return nil
}

// Status returns the normalized transaction status the payload reports,
// preferring the textual status over the numeric result code.
func (n *CinetPayNotification) Status() (TransactionStatus, bool) {
	if n.TransStatus != "" {
		return NormalizeStatus(n.TransStatus)
	}
	return NormalizeStatus(n.Result)
}
