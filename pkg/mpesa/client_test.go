package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kicksnairobi/footwear-backend/pkg/config"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
)

// 09:30 EAT
var fixedNow = time.Date(2026, 10, 15, 6, 30, 0, 0, time.UTC)

func TestPasswordEncodesShortcodePasskeyTimestamp(t *testing.T) {
	ts := Timestamp(fixedNow)
	if ts != "20261015093000" {
		t.Fatalf("unexpected timestamp %s", ts)
	}
	decoded, err := base64.StdEncoding.DecodeString(Password("174379", "passkey", ts))
	if err != nil {
		t.Fatalf("decode password: %v", err)
	}
	if string(decoded) != "174379passkey20261015093000" {
		t.Fatalf("unexpected password plaintext %q", decoded)
	}
}

func TestSTKPushSendsPasswordAndCachesToken(t *testing.T) {
	var tokenCalls int32
	var pushBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/oauth/v1/generate"):
			atomic.AddInt32(&tokenCalls, 1)
			user, pass, ok := r.BasicAuth()
			if !ok || user != "key" || pass != "secret" {
				t.Errorf("unexpected basic auth %q:%q", user, pass)
			}
			_, _ = io.WriteString(w, `{"access_token":"tok-1","expires_in":"3599"}`)
		case r.URL.Path == stkPushPath:
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				t.Errorf("missing bearer token")
			}
			_ = json.NewDecoder(r.Body).Decode(&pushBody)
			_, _ = io.WriteString(w, `{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	for i := 0; i < 2; i++ {
		resp, err := client.STKPush(context.Background(), STKPushRequest{
			Phone:  "254722000000",
			Amount: decimal.RequireFromString("2199.50"),
		})
		if err != nil {
			t.Fatalf("stk push: %v", err)
		}
		if resp.CheckoutRequestID != "ws_CO_1" || resp.MerchantRequestID != "m-1" {
			t.Fatalf("unexpected response %+v", resp)
		}
	}

	if got := atomic.LoadInt32(&tokenCalls); got != 1 {
		t.Fatalf("expected token fetched once, got %d", got)
	}
	if pushBody["Amount"] != float64(2200) {
		t.Fatalf("expected amount rounded up to 2200, got %v", pushBody["Amount"])
	}
	if pushBody["CallBackURL"] != "https://kicks.test/api/v1/payments/webhooks/mpesa" {
		t.Fatalf("expected default callback url, got %v", pushBody["CallBackURL"])
	}
	if pushBody["Password"] != Password("174379", "passkey", "20261015093000") {
		t.Fatalf("unexpected password %v", pushBody["Password"])
	}
}

func TestSTKPushErrorBodyIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/oauth") {
			_, _ = io.WriteString(w, `{"access_token":"tok","expires_in":"3599"}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).STKPush(context.Background(), STKPushRequest{
		Phone:  "254722000000",
		Amount: decimal.NewFromInt(10),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestSTKPushTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := newTestClient(t, srv.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := client.STKPush(context.Background(), STKPushRequest{Phone: "254722000000", Amount: decimal.NewFromInt(10)})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Fatalf("expected timeout classification, got %v", err)
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeUpstream) {
		t.Fatalf("expected upstream code, got %v", err)
	}
}

func TestQueryStatusMapsInFlightToPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/oauth") {
			_, _ = io.WriteString(w, `{"access_token":"tok","expires_in":"3599"}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`)
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL).QueryStatus(context.Background(), "ws_CO_1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !resp.Pending() || resp.Succeeded() {
		t.Fatalf("expected pending response, got %+v", resp)
	}
}

func TestQueryStatusSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/oauth") {
			_, _ = io.WriteString(w, `{"access_token":"tok","expires_in":"3599"}`)
			return
		}
		_, _ = io.WriteString(w, `{"ResponseCode":"0","CheckoutRequestID":"ws_CO_1","ResultCode":"0","ResultDesc":"The service request is processed successfully."}`)
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL).QueryStatus(context.Background(), "ws_CO_1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !resp.Succeeded() {
		t.Fatalf("expected success, got %+v", resp)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(config.MpesaConfig{ShortCode: "1", PassKey: "p"}); !errors.Is(err, errCredentialsRequired) {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(baseURL), WithClock(func() time.Time { return fixedNow })}, opts...)
	client, err := NewClient(config.MpesaConfig{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		PassKey:        "passkey",
		CallbackURL:    "https://kicks.test/api/v1/payments/webhooks/mpesa",
		Timeout:        5 * time.Second,
	}, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}
