package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	JWTSecret      string
	Issuer         string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// NewRouter wires every route. /health and /metrics are public.
func NewRouter(h *Handlers, cfg RouterConfig, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(MaxBody(cfg.MaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondOK(w, http.StatusOK, "ok", nil)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Authenticator(cfg.JWTSecret, cfg.Issuer))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/add", h.AddItem)
			r.Patch("/items/{lineId}", h.UpdateQuantity)
			r.Delete("/items/{lineId}", h.RemoveItem)
			r.Post("/checkout", h.CreateDraft)
		})

		r.Get("/checkout", h.GetCheckout)
		r.Post("/checkout/done", h.Confirm)
		r.Post("/coupon/validate", h.ValidateCoupon)
		r.Post("/razorpay/initiate", h.InitiatePayment)

		r.Route("/order", func(r chi.Router) {
			r.Get("/{id}", h.GetOrder)
			r.Post("/cancel/{id}", h.CancelOrder)
			r.Post("/return/{id}", h.ReturnOrder)
		})
		r.Get("/orders", h.ListOrders)
		r.Get("/wallet", h.GetWallet)

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminOnly)

			r.Route("/orderManagement", func(r chi.Router) {
				r.Get("/", h.ListAllOrders)
				r.Post("/acceptReason/{id}", h.AcceptReturn)
				r.Post("/rejectReason/{id}", h.RejectReturn)
				r.Post("/status/{id}", h.UpdateOrderStatus)
			})

			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", h.ListCoupons)
				r.Post("/", h.CreateCoupon)
				r.Put("/{id}", h.UpdateCoupon)
				r.Delete("/{id}", h.DeleteCoupon)
			})

			r.Route("/offers", func(r chi.Router) {
				r.Get("/", h.ListOffers)
				r.Post("/", h.CreateOffer)
				r.Delete("/{id}", h.DeleteOffer)
			})
		})
	})

	return r
}
