package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/kicksnairobi/footwear-backend/api/responses"
	"github.com/kicksnairobi/footwear-backend/pkg/config"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

const (
	envHeader    = "X-Kicks-Env"
	readyTimeout = 2 * time.Second
)

type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the database and redis answer a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, db Pinger, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		var failure error
		if db == nil {
			checks["database"] = "unconfigured"
		} else if err := db.Ping(ctx); err != nil {
			checks["database"] = "unavailable"
			failure = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable")
		}
		if cache == nil {
			checks["redis"] = "unconfigured"
		} else if err := cache.Ping(ctx); err != nil {
			checks["redis"] = "unavailable"
			if failure == nil {
				failure = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable")
			}
		}

		if failure != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.As(failure).WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
