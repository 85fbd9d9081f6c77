// Package lnbits is the HTTP client for the external Lightning payment
// gateway. Every call carries a client-side timeout; a timeout or transport
// failure surfaces as a *RequestError and never as a payment status.
package lnbits

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultRequestTimeout = 20 * time.Second

// Config holds the gateway connection settings.
type Config struct {
	Origin         string        `yaml:"origin"`
	InvoiceReadKey string        `yaml:"invoice-read-key"`
	AdminKey       string        `yaml:"admin-key"`
	RequestTimeout time.Duration `yaml:"request-timeout"`
}

// Client talks to an lnbits instance.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// RequestError describes a failed gateway call without exposing the raw
// response body to callers.
type RequestError struct {
	Op         string // Gateway operation, e.g. "create invoice".
	StatusCode int    // HTTP status, 0 for transport failures.
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("lnbits: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("lnbits: %s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Invoice is a created payment request.
type Invoice struct {
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
}

// InvoiceStatus reports whether a payment hash has settled.
type InvoiceStatus struct {
	Paid bool `json:"paid"`
}

// LnurlpLink is a created pull-payment link.
type LnurlpLink struct {
	ID    string `json:"id"`
	Lnurl string `json:"lnurl"`
}

// LnurlpPayment is one settled payment against a pull-payment link.
type LnurlpPayment struct {
	PaymentHash string `json:"payment_hash"`
	Amount      int64  `json:"amount"` // In sats.
}

// WithdrawLink is a created withdraw link.
type WithdrawLink struct {
	ID    string `json:"id"`
	Lnurl string `json:"lnurl"`
}

// WithdrawStatus reports how often a withdraw link has been redeemed.
type WithdrawStatus struct {
	Used int `json:"used"`
}

// CreateInvoice creates an incoming invoice for the given amount in sats.
func (c *Client) CreateInvoice(ctx context.Context, amountSats int64, memo string, webhook string) (*Invoice, error) {
	body := map[string]any{
		"out":     false,
		"amount":  amountSats,
		"memo":    memo,
		"webhook": webhook,
	}
	var invoice Invoice
	if err := c.do(ctx, http.MethodPost, "/api/v1/payments", c.cfg.InvoiceReadKey, body, &invoice, "create invoice"); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetInvoiceStatus queries the settlement state of a payment hash.
func (c *Client) GetInvoiceStatus(ctx context.Context, paymentHash string) (*InvoiceStatus, error) {
	var status InvoiceStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/payments/"+paymentHash, c.cfg.InvoiceReadKey, nil, &status, "get invoice status"); err != nil {
		return nil, err
	}
	return &status, nil
}

// CreateLnurlp creates a pull-payment link. minSats/maxSats bound the
// acceptable payment amounts; a webhook is invoked per settled payment.
func (c *Client) CreateLnurlp(ctx context.Context, description string, minSats, maxSats int64, webhook string) (*LnurlpLink, error) {
	body := map[string]any{
		"description": description,
		"min":         minSats,
		"max":         maxSats,
		"webhook_url": webhook,
	}
	var link LnurlpLink
	if err := c.do(ctx, http.MethodPost, "/lnurlp/api/v1/links", c.cfg.AdminKey, body, &link, "create lnurlp link"); err != nil {
		return nil, err
	}
	return &link, nil
}

// GetLnurlpPayments lists the settled payments recorded against a
// pull-payment link.
func (c *Client) GetLnurlpPayments(ctx context.Context, lnurlpID string) ([]LnurlpPayment, error) {
	var payments []LnurlpPayment
	if err := c.do(ctx, http.MethodGet, "/lnurlp/api/v1/links/"+lnurlpID+"/payments", c.cfg.AdminKey, nil, &payments, "get lnurlp payments"); err != nil {
		return nil, err
	}
	return payments, nil
}

// DeleteLnurlp removes a pull-payment link.
func (c *Client) DeleteLnurlp(ctx context.Context, lnurlpID string) error {
	return c.do(ctx, http.MethodDelete, "/lnurlp/api/v1/links/"+lnurlpID, c.cfg.AdminKey, nil, nil, "delete lnurlp link")
}

// CreateWithdrawLink creates a single-use withdraw link over the given amount.
func (c *Client) CreateWithdrawLink(ctx context.Context, title string, amountSats int64, webhook string) (*WithdrawLink, error) {
	body := map[string]any{
		"title":            title,
		"min_withdrawable": amountSats,
		"max_withdrawable": amountSats,
		"uses":             1,
		"wait_time":        1,
		"is_unique":        true,
		"webhook_url":      webhook,
		"use_custom":       false,
	}
	var link WithdrawLink
	if err := c.do(ctx, http.MethodPost, "/withdraw/api/v1/links", c.cfg.AdminKey, body, &link, "create withdraw link"); err != nil {
		return nil, err
	}
	return &link, nil
}

// GetWithdrawStatus queries how often a withdraw link has been redeemed.
func (c *Client) GetWithdrawStatus(ctx context.Context, withdrawID string) (*WithdrawStatus, error) {
	var status WithdrawStatus
	if err := c.do(ctx, http.MethodGet, "/withdraw/api/v1/links/"+withdrawID, c.cfg.AdminKey, nil, &status, "get withdraw status"); err != nil {
		return nil, err
	}
	return &status, nil
}

// DeleteWithdrawLink removes a withdraw link.
func (c *Client) DeleteWithdrawLink(ctx context.Context, withdrawID string) error {
	return c.do(ctx, http.MethodDelete, "/withdraw/api/v1/links/"+withdrawID, c.cfg.AdminKey, nil, nil, "delete withdraw link")
}

func (c *Client) do(ctx context.Context, method, path, apiKey string, body any, out any, op string) error {
	var reader io.Reader
	if body != nil {
		encoded, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			return &RequestError{Op: op, Err: errMarshal}
		}
		reader = bytes.NewReader(encoded)
	}

	req, errReq := http.NewRequestWithContext(ctx, method, c.cfg.Origin+path, reader)
	if errReq != nil {
		return &RequestError{Op: op, Err: errReq}
	}
	req.Header.Set("X-Api-Key", apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, errDo := c.client.Do(req)
	if errDo != nil {
		return &RequestError{Op: op, Err: errDo}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain without surfacing the body; gateway payloads must not leak.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &RequestError{Op: op, StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(out); errDecode != nil {
		return &RequestError{Op: op, Err: errDecode}
	}
	return nil
}
