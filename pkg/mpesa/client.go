package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kicksnairobi/footwear-backend/pkg/config"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/metrics"
)

const (
	processorName        = "mpesa"
	tokenPath            = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath          = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath         = "/mpesa/stkpushquery/v1/query"
	timestampLayout      = "20060102150405"
	responseBodyLimit    = 4096
	tokenRefreshLeeway   = time.Minute
	defaultTokenLifetime = 3599 * time.Second
)

var (
	errCredentialsRequired = errors.New("mpesa consumer key and secret are required")
	errShortCodeRequired   = errors.New("mpesa shortcode and passkey are required")
)

// Client talks to Safaricom Daraja for Lipa na M-Pesa Online (STK push).
type Client struct {
	httpClient      *http.Client
	baseURL         string
	consumerKey     string
	consumerSecret  string
	shortCode       string
	passKey         string
	transactionType string
	accountRef      string
	callbackURL     string
	timeout         time.Duration
	metrics         *metrics.ProcessorMetrics
	now             func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func WithMetrics(m *metrics.ProcessorMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a Daraja client from config. The http.Client timeout is the
// configured processor timeout.
func NewClient(cfg config.MpesaConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.ConsumerKey) == "" || strings.TrimSpace(cfg.ConsumerSecret) == "" {
		return nil, errCredentialsRequired
	}
	if strings.TrimSpace(cfg.ShortCode) == "" || strings.TrimSpace(cfg.PassKey) == "" {
		return nil, errShortCodeRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultProcessorTimeout
	}
	c := &Client{
		httpClient:      &http.Client{Timeout: timeout},
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		consumerKey:     strings.TrimSpace(cfg.ConsumerKey),
		consumerSecret:  strings.TrimSpace(cfg.ConsumerSecret),
		shortCode:       strings.TrimSpace(cfg.ShortCode),
		passKey:         strings.TrimSpace(cfg.PassKey),
		transactionType: cfg.TransactionType,
		accountRef:      cfg.AccountRef,
		callbackURL:     cfg.CallbackURL,
		timeout:         timeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	if c.transactionType == "" {
		c.transactionType = "CustomerPayBillOnline"
	}
	return c, nil
}

// DefaultCallbackURL is the configured fallback used when the caller supplies none.
func (c *Client) DefaultCallbackURL() string {
	if c == nil {
		return ""
	}
	return c.callbackURL
}

// Daraja validates timestamps against Nairobi wall time.
var eat = time.FixedZone("EAT", 3*60*60)

// Timestamp formats t as yyyyMMddHHmmss in EAT.
func Timestamp(t time.Time) string {
	return t.In(eat).Format(timestampLayout)
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// AccessToken returns a cached OAuth token, fetching a new one when it is
// close to expiry.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry.Add(-tokenRefreshLeeway)) {
		return c.token, nil
	}

	started := c.now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tokenPath, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "build mpesa token request")
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.consumerKey + ":" + c.consumerSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := c.do(req, &body); err != nil {
		c.observe("oauth", err, started)
		return "", err
	}
	c.observe("oauth", nil, started)
	if body.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeUpstream, "mpesa token response missing access_token")
	}

	lifetime := defaultTokenLifetime
	if secs, err := time.ParseDuration(strings.TrimSpace(body.ExpiresIn) + "s"); err == nil && secs > 0 {
		lifetime = secs
	}
	c.token = body.AccessToken
	c.tokenExpiry = c.now().Add(lifetime)
	return c.token, nil
}

// STKPushRequest is the abstract charge handed to Daraja.
type STKPushRequest struct {
	Phone            string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
	CallbackURL      string
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKPush prompts the payer's handset. Daraja only accepts whole shillings so
// the amount is rounded up.
func (c *Client) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mpesa client not configured")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer phone is required")
	}
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	callback := strings.TrimSpace(req.CallbackURL)
	if callback == "" {
		callback = c.callbackURL
	}
	if callback == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mpesa callback url is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	accountRef := req.AccountReference
	if accountRef == "" {
		accountRef = c.accountRef
	}
	ts := Timestamp(c.now())
	payload := map[string]any{
		"BusinessShortCode": c.shortCode,
		"Password":          Password(c.shortCode, c.passKey, ts),
		"Timestamp":         ts,
		"TransactionType":   c.transactionType,
		"Amount":            req.Amount.Ceil().IntPart(),
		"PartyA":            req.Phone,
		"PartyB":            c.shortCode,
		"PhoneNumber":       req.Phone,
		"CallBackURL":       callback,
		"AccountReference":  truncate(accountRef, 12),
		"TransactionDesc":   truncate(defaultString(req.Description, "Order payment"), 13),
	}

	started := c.now()
	httpReq, err := c.jsonRequest(ctx, stkPushPath, token, payload)
	if err != nil {
		return nil, err
	}
	var resp STKPushResponse
	if err := c.do(httpReq, &resp); err != nil {
		c.observe("stk_push", err, started)
		return nil, err
	}
	c.observe("stk_push", nil, started)
	if resp.ResponseCode != "0" || resp.CheckoutRequestID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "mpesa rejected stk push").
			WithDetails(map[string]any{"responseCode": resp.ResponseCode, "responseDescription": resp.ResponseDescription})
	}
	return &resp, nil
}

// QueryResponse is Daraja's synchronous view of an STK push.
type QueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// Succeeded reports ResultCode 0.
func (q *QueryResponse) Succeeded() bool {
	return q != nil && strings.TrimSpace(q.ResultCode) == "0"
}

// Pending reports that Daraja has not reached a verdict yet. Daraja answers
// with an error body (errorCode 500.001.1001) while the push is in flight.
func (q *QueryResponse) Pending() bool {
	return q == nil || strings.TrimSpace(q.ResultCode) == ""
}

// QueryStatus asks Daraja for the state of an STK push.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mpesa client not configured")
	}
	if strings.TrimSpace(checkoutRequestID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkoutRequestId is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	ts := Timestamp(c.now())
	payload := map[string]any{
		"BusinessShortCode": c.shortCode,
		"Password":          Password(c.shortCode, c.passKey, ts),
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutRequestID,
	}

	started := c.now()
	httpReq, err := c.jsonRequest(ctx, stkQueryPath, token, payload)
	if err != nil {
		return nil, err
	}
	var resp QueryResponse
	if err := c.do(httpReq, &resp); err != nil {
		var pending *inFlightError
		if errors.As(err, &pending) {
			c.observe("stk_query", nil, started)
			return &QueryResponse{CheckoutRequestID: checkoutRequestID, ResultDesc: pending.message}, nil
		}
		c.observe("stk_query", err, started)
		return nil, err
	}
	c.observe("stk_query", nil, started)
	return &resp, nil
}

func (c *Client) jsonRequest(ctx context.Context, path, token string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal mpesa request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "build mpesa request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

type inFlightError struct {
	message string
}

func (e *inFlightError) Error() string { return e.message }

// inFlightErrorCode is returned by the query API while the payer has not answered.
const inFlightErrorCode = "500.001.1001"

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "mpesa request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "read mpesa response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			ErrorCode    string `json:"errorCode"`
			ErrorMessage string `json:"errorMessage"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.ErrorCode == inFlightErrorCode {
			return &inFlightError{message: apiErr.ErrorMessage}
		}
		return pkgerrors.Wrap(pkgerrors.CodeUpstream,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			"mpesa returned an error").
			WithDetails(map[string]any{"status": resp.StatusCode, "errorCode": apiErr.ErrorCode, "errorMessage": apiErr.ErrorMessage})
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decode mpesa response")
	}
	return nil
}

func (c *Client) observe(operation string, err error, started time.Time) {
	outcome := "ok"
	switch {
	case IsTimeout(err):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	c.metrics.Observe(processorName, operation, outcome, c.now().Sub(started))
}

// IsTimeout reports whether err came from a deadline or client timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func defaultString(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
