package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kicksnairobi/footwear-backend/api/responses"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	pkgredis "github.com/kicksnairobi/footwear-backend/pkg/redis"
)

const (
	idempotencyHeader       = "Idempotency-Key"
	replayedHeader          = "Idempotent-Replayed"
	defaultIdempotencyTTL   = 24 * time.Hour
	inFlightTTL             = 2 * time.Minute
	maxIdempotencyKeyLength = 255
)

// Settlement writes that must not be applied twice when a client retries.
// Paths are matched by suffix so the rules hold under any API base path.
var idempotentWrites = map[string][]string{
	http.MethodPost: {"/orders", "/invoices", "/receipts", "/payments/pay-invoice"},
}

// storedResponse is kept under the key. InFlight marks a reservation taken by
// a request that has not finished yet.
type storedResponse struct {
	InFlight    bool   `json:"in_flight,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the first completed response for requests repeating an
// Idempotency-Key on settlement writes. A repeat that arrives while the first
// is still running is rejected instead of executed twice.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if store == nil || clientKey == "" || !isIdempotentRoute(r.Method, strings.TrimSuffix(r.URL.Path, "/")) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if len(clientKey) > maxIdempotencyKeyLength {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long").
					WithDetails(map[string]any{"maxLength": maxIdempotencyKeyLength}))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashBody(body)
			key := store.IdempotencyKey(requestScope(r), clientKey)

			prior, err := lookup(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if prior == nil {
				prior, err = reserve(ctx, store, key, hash)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
			}
			if prior != nil {
				switch {
				case prior.RequestHash != hash:
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
				case prior.InFlight:
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
				default:
					replay(w, prior)
				}
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			settle(ctx, store, key, ttl, hash, capture, logg)
		})
	}
}

func lookup(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &stored, nil
}

// reserve claims the key for this request. When another request won the race
// its record is returned instead.
func reserve(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string) (*storedResponse, error) {
	marker, err := json.Marshal(storedResponse{InFlight: true, RequestHash: hash})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency reservation")
	}
	won, err := store.SetNX(ctx, key, string(marker), inFlightTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key")
	}
	if won {
		return nil, nil
	}
	prior, err := lookup(ctx, store, key)
	if err != nil || prior != nil {
		return prior, err
	}
	return &storedResponse{InFlight: true, RequestHash: hash}, nil
}

// settle stores the completed response, or releases the reservation when the
// handler failed server-side so the client can retry under the same key.
func settle(ctx context.Context, store pkgredis.IdempotencyStore, key string, ttl time.Duration, hash string, capture *responseCapture, logg *logger.Logger) {
	status := capture.statusOrOK()
	if status >= http.StatusInternalServerError {
		if err := store.Del(ctx, key); err != nil {
			logError(ctx, logg, "idempotency.release_failed", err)
		}
		return
	}
	payload, err := json.Marshal(storedResponse{
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
		RequestHash: hash,
	})
	if err != nil {
		logError(ctx, logg, "idempotency.encode_failed", err)
		return
	}
	if err := store.Set(ctx, key, string(payload), ttl); err != nil {
		logError(ctx, logg, "idempotency.store_failed", err)
	}
}

func replay(w http.ResponseWriter, stored *storedResponse) {
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(stored.Status)
	if decoded, err := base64.StdEncoding.DecodeString(stored.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

func requestScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func isIdempotentRoute(method, path string) bool {
	if path == "" {
		return false
	}
	for _, suffix := range idempotentWrites[method] {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
