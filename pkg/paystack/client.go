package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kicksnairobi/footwear-backend/pkg/config"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/metrics"
)

const (
	processorName      = "paystack"
	initializePath     = "/transaction/initialize"
	responseBodyLimit  = 4096
	referencePrefix    = "KCK"
	minorUnitsPerMajor = 100
)

var errSecretRequired = errors.New("paystack secret key is required")

// Client initializes hosted-checkout card transactions on Paystack.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	secretKey   string
	callbackURL string
	timeout     time.Duration
	metrics     *metrics.ProcessorMetrics
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

func NewClient(cfg config.PaystackConfig, opts ...Option) (*Client, error) {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errSecretRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultProcessorTimeout
	}
	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     cfg.BaseURL,
		secretKey:   secret,
		callbackURL: cfg.CallbackURL,
		timeout:     timeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	return c, nil
}

// NewReference returns a unique transaction reference.
func NewReference() string {
	return referencePrefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ToMinorUnits converts shillings to cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(minorUnitsPerMajor)).Round(0).IntPart()
}

type InitializeRequest struct {
	Email       string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializeTransaction creates a hosted checkout and returns the redirect URL.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer email is required")
	}
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if req.Reference == "" {
		req.Reference = NewReference()
	}
	callback := strings.TrimSpace(req.CallbackURL)
	if callback == "" {
		callback = c.callbackURL
	}

	payload := map[string]any{
		"email":     req.Email,
		"amount":    ToMinorUnits(req.Amount),
		"reference": req.Reference,
	}
	if req.Currency != "" {
		payload["currency"] = req.Currency
	}
	if callback != "" {
		payload["callback_url"] = callback
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal paystack request")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+initializePath, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "build paystack request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe("initialize", err, started)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "paystack request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		c.observe("initialize", err, started)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "read paystack response")
	}

	var apiResp struct {
		Status  bool               `json:"status"`
		Message string             `json:"message"`
		Data    InitializeResponse `json:"data"`
	}
	decodeErr := json.Unmarshal(raw, &apiResp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || decodeErr != nil || !apiResp.Status {
		c.observe("initialize", errors.New("error body"), started)
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, cause, "paystack returned an error").
			WithDetails(map[string]any{"status": resp.StatusCode, "message": apiResp.Message})
	}
	c.observe("initialize", nil, started)
	if apiResp.Data.Reference == "" {
		apiResp.Data.Reference = req.Reference
	}
	return &apiResp.Data, nil
}

// VerifySignature checks x-paystack-signature, an HMAC-SHA512 of the raw body
// keyed with the secret key.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	if c == nil || c.secretKey == "" {
		return false
	}
	return VerifySignature(c.secretKey, body, signature)
}

func VerifySignature(secret string, body []byte, signature string) bool {
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(given) == 0 {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), given)
}

// Sign returns the hex HMAC-SHA512 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) observe(operation string, err error, started time.Time) {
	outcome := "ok"
	switch {
	case IsTimeout(err):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	c.metrics.Observe(processorName, operation, outcome, time.Since(started))
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
