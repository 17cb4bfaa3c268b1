package mpesa

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ResultCodeSuccess is the only success code Daraja sends.
const ResultCodeSuccess = 0

// CallbackResult is the normalized content of an STK callback.
type CallbackResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Amount            *decimal.Decimal
	ReceiptNumber     string
	PhoneNumber       string
	TransactionDate   string
}

func (r *CallbackResult) Succeeded() bool {
	return r != nil && r.ResultCode == ResultCodeSuccess
}

type callbackEnvelope struct {
	Body struct {
		STKCallback *struct {
			MerchantRequestID string      `json:"MerchantRequestID"`
			CheckoutRequestID string      `json:"CheckoutRequestID"`
			ResultCode        json.Number `json:"ResultCode"`
			ResultDesc        string      `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []callbackItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type callbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// ParseCallback decodes Daraja's Body.stkCallback payload. Metadata is only
// present on success.
func ParseCallback(raw []byte) (*CallbackResult, error) {
	var env callbackEnvelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode stk callback: %w", err)
	}
	cb := env.Body.STKCallback
	if cb == nil {
		return nil, errors.New("stk callback body missing")
	}
	if strings.TrimSpace(cb.CheckoutRequestID) == "" {
		return nil, errors.New("stk callback missing CheckoutRequestID")
	}
	code, err := cb.ResultCode.Int64()
	if err != nil {
		return nil, fmt.Errorf("stk callback ResultCode: %w", err)
	}

	result := &CallbackResult{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        int(code),
		ResultDesc:        cb.ResultDesc,
	}
	if cb.CallbackMetadata == nil {
		return result, nil
	}
	for _, item := range cb.CallbackMetadata.Item {
		value := scalarString(item.Value)
		switch item.Name {
		case "Amount":
			if amount, err := decimal.NewFromString(value); err == nil {
				result.Amount = &amount
			}
		case "MpesaReceiptNumber":
			result.ReceiptNumber = value
		case "PhoneNumber":
			result.PhoneNumber = value
		case "TransactionDate":
			result.TransactionDate = value
		}
	}
	return result, nil
}

// scalarString flattens a JSON number or string to its text form.
func scalarString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}
