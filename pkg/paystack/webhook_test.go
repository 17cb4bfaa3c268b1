package paystack

import "testing"

func TestParseWebhookChargeSuccess(t *testing.T) {
	raw := []byte(`{"event":"charge.success","data":{"reference":"KCK-1","status":"success","amount":220000,"currency":"KES","gateway_response":"Approved"}}`)
	result, err := ParseWebhook(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !result.Success || !result.Terminal() {
		t.Fatalf("expected terminal success, got %+v", result)
	}
	if result.Amount == nil || result.Amount.String() != "2200" {
		t.Fatalf("unexpected amount %v", result.Amount)
	}
}

func TestParseWebhookStatusSuccessWithoutEvent(t *testing.T) {
	result, err := ParseWebhook([]byte(`{"data":{"reference":"KCK-2","status":"success"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !result.Success {
		t.Fatal("status success should count as success")
	}
}

func TestParseWebhookFailedCharge(t *testing.T) {
	result, err := ParseWebhook([]byte(`{"event":"charge.failed","data":{"reference":"KCK-3","status":"failed","gateway_response":"Declined"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Success || !result.Terminal() || result.Message != "Declined" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestParseWebhookRejectsMissingReference(t *testing.T) {
	if _, err := ParseWebhook([]byte(`{"event":"charge.success","data":{}}`)); err == nil {
		t.Fatal("expected error")
	}
	if _, err := ParseWebhook([]byte(`nope`)); err == nil {
		t.Fatal("expected decode error")
	}
}
