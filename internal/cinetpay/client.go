// Package cinetpay is a thin client for the aggregator's checkout API:
// payment initiation plus the status-check call used when a transaction is
// still pending. Webhook handling lives elsewhere; only the contract of these
// two endpoints matters here.
package cinetpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Calls to the aggregator are on the customer's polling path, so they get a
// short timeout rather than the default request timeout.
const requestTimeout = 5 * time.Second

type Client struct {
	apiKey    string
	siteID    string
	baseURL   string
	notifyURL string
	returnURL string
	cancelURL string
	http      *http.Client
}

func NewClient(apiKey, siteID, baseURL, notifyURL, returnURL, cancelURL string) *Client {
	return &Client{
		apiKey:    apiKey,
		siteID:    siteID,
		baseURL:   baseURL,
		notifyURL: notifyURL,
		returnURL: returnURL,
		cancelURL: cancelURL,
		http:      &http.Client{Timeout: requestTimeout},
	}
}

type initRequest struct {
	APIKey        string `json:"apikey"`
	SiteID        string `json:"site_id"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	Channels      string `json:"channels"`
	NotifyURL     string `json:"notify_url"`
	ReturnURL     string `json:"return_url"`
	CancelURL     string `json:"cancel_url"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone_number,omitempty"`
}

// InitResult carries the hosted checkout handle for a newly created payment.
type InitResult struct {
	PaymentURL   string
	PaymentToken string
}

// CheckResult is the aggregator's own view of a transaction, used to refresh
// still-pending transactions from the polling path.
type CheckResult struct {
	Status        string
	PaymentMethod string
	OperatorID    string
	Raw           json.RawMessage
}

type apiEnvelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitiatePayment registers a pending transaction with the aggregator and
// returns the hosted checkout URL the customer is redirected to.
func (c *Client) InitiatePayment(ctx context.Context, transactionID, amount, currency, description string) (*InitResult, error) {
	req := initRequest{
		APIKey:        c.apiKey,
		SiteID:        c.siteID,
		TransactionID: transactionID,
		Amount:        amount,
		Currency:      currency,
		Description:   description,
		Channels:      "MOBILE_MONEY",
		NotifyURL:     c.notifyURL,
		ReturnURL:     c.returnURL,
		CancelURL:     c.cancelURL,
	}

	env, err := c.post(ctx, "/v2/payment", req)
	if err != nil {
		return nil, err
	}
	if env.Code != "201" {
		return nil, fmt.Errorf("cinetpay init refused: code=%s message=%s", env.Code, env.Message)
	}

	var data struct {
		PaymentURL   string `json:"payment_url"`
		PaymentToken string `json:"payment_token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("cinetpay init response decode failed: %w", err)
	}
	return &InitResult{PaymentURL: data.PaymentURL, PaymentToken: data.PaymentToken}, nil
}

// CheckPayment queries the aggregator for the current state of a transaction.
func (c *Client) CheckPayment(ctx context.Context, transactionID string) (*CheckResult, error) {
	req := map[string]string{
		"apikey":         c.apiKey,
		"site_id":        c.siteID,
		"transaction_id": transactionID,
	}

	env, err := c.post(ctx, "/v2/payment/check", req)
	if err != nil {
		return nil, err
	}

	var data struct {
		Status        string `json:"status"`
		PaymentMethod string `json:"payment_method"`
		OperatorID    string `json:"operator_id"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("cinetpay check response decode failed: %w", err)
		}
	}
	if data.Status == "" {
		return nil, errors.New("cinetpay check returned no status")
	}
	return &CheckResult{
		Status:        data.Status,
		PaymentMethod: data.PaymentMethod,
		OperatorID:    data.OperatorID,
		Raw:           env.Data,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*apiEnvelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cinetpay call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cinetpay error %d: %s", resp.StatusCode, raw)
	}

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("cinetpay response decode failed: %w", err)
	}
	return &env, nil
}
