package http

import (
	"net/http"

	"github.com/fjod/helden/internal/domain"
	"github.com/go-chi/chi/v5"
)

type StatusRequest struct {
	Status        domain.OrderStatus   `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
}

// ListAllOrders handles GET /admin/orderManagement
func (h *Handlers) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	result, err := h.Orders.ListAll(ctx, page, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "orders", pageEnvelope(result))
}

// AcceptReturn handles POST /admin/orderManagement/acceptReason/{id}
func (h *Handlers) AcceptReturn(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	order, err := h.Orders.Accept(ctx, orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "return accepted", envelope{"order": order})
}

// RejectReturn handles POST /admin/orderManagement/rejectReason/{id}
func (h *Handlers) RejectReturn(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	order, err := h.Orders.Reject(ctx, orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "return rejected", envelope{"order": order})
}

// UpdateOrderStatus handles POST /admin/orderManagement/status/{id}
func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" && req.PaymentStatus == "" {
		respondError(w, http.StatusBadRequest, "status or paymentStatus is required")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	order, err := h.Orders.UpdateStatus(ctx, orderID, req.Status, req.PaymentStatus)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "order updated", envelope{"order": order})
}

// ListCoupons handles GET /admin/coupons
func (h *Handlers) ListCoupons(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	coupons, err := h.Coupons.List(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "coupons", envelope{"coupons": coupons})
}

// CreateCoupon handles POST /admin/coupons
func (h *Handlers) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var c domain.Coupon
	if err := decodeJSON(r, &c); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	created, err := h.Coupons.Create(ctx, &c)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, "coupon created", envelope{"coupon": created})
}

// UpdateCoupon handles PUT /admin/coupons/{id}
func (h *Handlers) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var c domain.Coupon
	if err := decodeJSON(r, &c); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	updated, err := h.Coupons.Update(ctx, id, &c)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "coupon updated", envelope{"coupon": updated})
}

// DeleteCoupon handles DELETE /admin/coupons/{id}
func (h *Handlers) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	if err := h.Coupons.Delete(ctx, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "coupon deleted", nil)
}

// ListOffers handles GET /admin/offers
func (h *Handlers) ListOffers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	offers, err := h.Offers.List(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "offers", envelope{"offers": offers})
}

// CreateOffer handles POST /admin/offers
func (h *Handlers) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var o domain.Offer
	if err := decodeJSON(r, &o); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	created, err := h.Offers.Create(ctx, &o)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, "offer created", envelope{"offer": created})
}

// DeleteOffer handles DELETE /admin/offers/{id}
func (h *Handlers) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	if err := h.Offers.Delete(ctx, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "offer removed", nil)
}
