package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/fjod/helden/internal/service"
	"github.com/go-chi/chi/v5"
)

type ReasonRequest struct {
	Reason string `json:"reason"`
}

// decodeReason accepts an empty body as no reason.
func decodeReason(r *http.Request) (string, error) {
	var req ReasonRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return req.Reason, nil
}

// GetOrder handles GET /order/{id}
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	order, err := h.Orders.Get(ctx, userIDFromContext(ctx), orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "order", envelope{"order": order})
}

// ListOrders handles GET /orders
func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	result, err := h.Orders.List(ctx, userIDFromContext(ctx), page, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "orders", pageEnvelope(result))
}

// CancelOrder handles POST /order/cancel/{id}
func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	reason, err := decodeReason(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	order, err := h.Orders.Cancel(ctx, service.CancelRequest{
		UserID:         userIDFromContext(ctx),
		OrderID:        orderID,
		Reason:         reason,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "order cancelled", envelope{"order": order})
}

// ReturnOrder handles POST /order/return/{id}
func (h *Handlers) ReturnOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	reason, err := decodeReason(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	order, err := h.Orders.RequestReturn(ctx, userIDFromContext(ctx), orderID, reason)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "return requested", envelope{"order": order})
}

// GetWallet handles GET /wallet
func (h *Handlers) GetWallet(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	result, err := h.Wallet.Get(ctx, userIDFromContext(ctx), page, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "wallet", envelope{"wallet": result})
}

func pageEnvelope(p *service.OrderPage) envelope {
	return envelope{
		"orders":      p.Orders,
		"total":       p.Total,
		"totalPages":  p.TotalPages,
		"currentPage": p.CurrentPage,
	}
}
