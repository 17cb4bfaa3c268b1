package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kicksnairobi/footwear-backend/api/controllers"
	invoicecontrollers "github.com/kicksnairobi/footwear-backend/api/controllers/invoices"
	ordercontrollers "github.com/kicksnairobi/footwear-backend/api/controllers/orders"
	packagingcontrollers "github.com/kicksnairobi/footwear-backend/api/controllers/packaging"
	paymentcontrollers "github.com/kicksnairobi/footwear-backend/api/controllers/payments"
	receiptcontrollers "github.com/kicksnairobi/footwear-backend/api/controllers/receipts"
	webhookcontrollers "github.com/kicksnairobi/footwear-backend/api/controllers/webhooks"
	"github.com/kicksnairobi/footwear-backend/api/middleware"
	"github.com/kicksnairobi/footwear-backend/pkg/config"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
	pkgredis "github.com/kicksnairobi/footwear-backend/pkg/redis"
)

// Dependencies are the services and infrastructure the HTTP surface routes to.
type Dependencies struct {
	DB               controllers.Pinger
	Cache            controllers.Pinger
	IdempotencyStore pkgredis.IdempotencyStore
	Gatherer         prometheus.Gatherer

	Orders    ordercontrollers.Service
	Invoices  invoicecontrollers.Service
	Payments  paymentcontrollers.Service
	Receipts  receiptcontrollers.Service
	Packaging packagingcontrollers.Service

	MpesaCallbacks   webhookcontrollers.MpesaCallbackService
	PaystackWebhooks webhookcontrollers.PaystackWebhookService
	PaystackVerifier webhookcontrollers.SignatureVerifier
	MpesaGuard       webhookcontrollers.DeliveryGuard
	PaystackGuard    webhookcontrollers.DeliveryGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.PublicBaseURL),
	)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Cache))
	})

	basePath := cfg.App.APIBasePath
	if basePath == "" {
		basePath = "/api/v1"
	}

	r.Route(basePath, func(r chi.Router) {
		// Processor callbacks are unauthenticated; paystack is signature checked.
		r.Post("/payments/webhooks/mpesa", webhookcontrollers.MpesaCallback(deps.MpesaCallbacks, deps.MpesaGuard, logg))
		r.Post("/payments/webhooks/paystack", webhookcontrollers.PaystackWebhook(deps.PaystackWebhooks, deps.PaystackVerifier, deps.PaystackGuard, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(deps.IdempotencyStore, idempotencyTTL(cfg), logg))

			staff := middleware.RequireStaff(logg)

			r.Post("/orders", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/orders/{orderId}", ordercontrollers.Get(deps.Orders, logg))
			r.With(staff).Patch("/orders/{orderId}/status", ordercontrollers.UpdateStatus(deps.Orders, logg))

			r.With(staff).Post("/invoices", invoicecontrollers.Create(deps.Invoices, logg))
			r.Get("/invoices/{invoiceId}", invoicecontrollers.Get(deps.Invoices, logg))

			r.Post("/payments/pay-invoice", paymentcontrollers.PayInvoice(deps.Payments, logg))
			r.Get("/payments/{paymentId}", paymentcontrollers.Get(deps.Payments, logg))
			r.With(staff).Patch("/payments/{paymentId}/cash", paymentcontrollers.MarkCash(deps.Payments, logg))
			r.Get("/payments/{paymentId}/mpesa-status", paymentcontrollers.MpesaStatus(deps.Payments, logg))

			r.With(staff).Post("/receipts", receiptcontrollers.Create(deps.Receipts, logg))
			r.Get("/receipts/{receiptId}", receiptcontrollers.Get(deps.Receipts, logg))

			r.Get("/packaging-options", packagingcontrollers.List(deps.Packaging, logg))
			r.With(staff).Post("/packaging-options", packagingcontrollers.Create(deps.Packaging, logg))
			r.With(staff).Patch("/packaging-options/{packagingOptionId}", packagingcontrollers.Update(deps.Packaging, logg))
			r.With(staff).Delete("/packaging-options/{packagingOptionId}", packagingcontrollers.Delete(deps.Packaging, logg))
		})
	})

	return r
}

func idempotencyTTL(cfg *config.Config) time.Duration {
	if cfg == nil {
		return 0
	}
	return cfg.Eventing.HTTPIdempotencyTTL
}
