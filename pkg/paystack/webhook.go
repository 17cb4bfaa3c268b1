package paystack

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	eventChargeSuccess = "charge.success"
	statusSuccess      = "success"
)

// WebhookResult is the normalized content of a Paystack event.
type WebhookResult struct {
	Event     string
	Reference string
	Status    string
	Success   bool
	Amount    *decimal.Decimal
	Currency  string
	Message   string
}

// ParseWebhook decodes a Paystack event. charge.success, or a data.status of
// success, counts as a successful charge.
func ParseWebhook(raw []byte) (*WebhookResult, error) {
	var body struct {
		Event string `json:"event"`
		Data  struct {
			Reference       string  `json:"reference"`
			Status          string  `json:"status"`
			Amount          *int64  `json:"amount"`
			Currency        string  `json:"currency"`
			GatewayResponse string  `json:"gateway_response"`
			Message         *string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode paystack webhook: %w", err)
	}
	ref := strings.TrimSpace(body.Data.Reference)
	if ref == "" {
		return nil, errors.New("paystack webhook missing reference")
	}

	result := &WebhookResult{
		Event:     body.Event,
		Reference: ref,
		Status:    body.Data.Status,
		Currency:  body.Data.Currency,
		Message:   body.Data.GatewayResponse,
		Success:   body.Event == eventChargeSuccess || strings.EqualFold(body.Data.Status, statusSuccess),
	}
	if result.Message == "" && body.Data.Message != nil {
		result.Message = *body.Data.Message
	}
	if body.Data.Amount != nil {
		major := decimal.NewFromInt(*body.Data.Amount).Div(decimal.NewFromInt(minorUnitsPerMajor))
		result.Amount = &major
	}
	return result, nil
}

// Terminal reports whether the event settles the charge one way or the other.
// Events like charge.dispute.create carry a reference but say nothing final.
func (r *WebhookResult) Terminal() bool {
	if r == nil {
		return false
	}
	if r.Success {
		return true
	}
	switch strings.ToLower(r.Status) {
	case "failed", "abandoned", "reversed":
		return true
	}
	return false
}
