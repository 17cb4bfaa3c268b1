package middleware

import (
	"net/http"
	"strings"

	"github.com/kicksnairobi/footwear-backend/api/responses"
	pkgAuth "github.com/kicksnairobi/footwear-backend/pkg/auth"
	"github.com/kicksnairobi/footwear-backend/pkg/config"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

const bearerScheme = "Bearer"

// Auth validates a bearer token and seeds the request context with the caller.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, r, logg, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				unauthorized(w, r, logg, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			actor := Actor{UserID: claims.UserID.String(), Role: claims.Role}
			ctx := WithActor(r.Context(), actor)
			if entry, ok := ctx.Value(ctxAccessLog).(*accessLogEntry); ok {
				entry.userID = actor.UserID
			}
			if logg != nil {
				ctx = logg.WithUserID(ctx, actor.UserID)
				ctx = logg.WithActorRole(ctx, string(actor.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts "Bearer <token>" with a case-insensitive scheme.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, r *http.Request, logg *logger.Logger, err error) {
	w.Header().Set("WWW-Authenticate", bearerScheme+` realm="kicks"`)
	responses.WriteError(r.Context(), logg, w, err)
}
