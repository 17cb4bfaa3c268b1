package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync/atomic"

	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	"github.com/kicksnairobi/footwear-backend/pkg/types"
)

// rateLimitRetryAfter matches the STK push window.
const rateLimitRetryAfter = "60"

var debugErrors atomic.Bool

// SetDebug toggles the raw error and stack fields on error envelopes.
// Production deployments leave it off.
func SetDebug(enabled bool) {
	debugErrors.Store(enabled)
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Success: true, Data: data})
}

// WriteError renders err as the API error envelope. Untyped errors become
// INTERNAL_ERROR so driver messages never reach clients.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	payload := types.ErrorEnvelope{
		Message: publicMessage(typed, meta),
		Code:    string(typed.Code()),
	}
	if meta.DetailsAllowed {
		payload.Details = typed.Details()
	}

	dump := pkgerrors.Dump(err)
	if debugErrors.Load() {
		payload.Error = dump.TopMessage
		payload.Stack = strings.Join(dump.Chain, "\n")
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, errorFields(err, typed, dump))
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	if typed.Code() == pkgerrors.CodeRateLimit {
		w.Header().Set("Retry-After", rateLimitRetryAfter)
	}
	writeJSON(w, meta.HTTPStatus, payload)
}

// publicMessage keeps the caller-facing text for client errors and falls
// back to the code's generic message for server-side failures.
func publicMessage(typed *pkgerrors.Error, meta pkgerrors.Metadata) string {
	switch typed.Code() {
	case pkgerrors.CodeInternal, pkgerrors.CodeDependency:
		return meta.PublicMessage
	}
	if m := typed.Message(); m != "" {
		return m
	}
	return meta.PublicMessage
}

func errorFields(err error, typed *pkgerrors.Error, dump pkgerrors.ErrorDump) map[string]any {
	fields := map[string]any{
		"error":       dump.TopMessage,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
		"retryable":   pkgerrors.Retryable(err),
	}
	if dump.PGCode != "" {
		fields["pg_code"] = dump.PGCode
		fields["pg_detail"] = dump.PGDetail
		fields["pg_message"] = dump.PGMessage
		fields["pg_table"] = dump.PGTable
		fields["pg_column"] = dump.PGColumn
		fields["pg_constraint"] = dump.PGConstraint
	}
	if dm, ok := typed.Details().(map[string]any); ok {
		if step, ok := dm["step"]; ok {
			fields["step"] = step
		}
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
