package http

import (
	"net/http"

	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

type InitiatePaymentRequest struct {
	DraftID    string `json:"draftId"`
	CouponCode string `json:"couponCode,omitempty"`
}

type ValidateCouponRequest struct {
	DraftID    string `json:"draftId"`
	CouponCode string `json:"couponCode"`
}

type ConfirmRequest struct {
	DraftID           string `json:"draftId"`
	AddressID         string `json:"addressId"`
	PaymentMethod     string `json:"paymentMethod"`
	CouponCode        string `json:"couponCode,omitempty"`
	RazorpayOrderID   string `json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string `json:"razorpayPaymentId,omitempty"`
	RazorpaySignature string `json:"razorpaySignature,omitempty"`
}

// CreateDraft handles POST /cart/checkout
func (h *Handlers) CreateDraft(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	draft, err := h.Checkout.CreateDraft(ctx, userIDFromContext(ctx))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, "draft order created", envelope{"draftId": draft.ID, "order": draft})
}

// GetCheckout handles GET /checkout?draftId=
func (h *Handlers) GetCheckout(w http.ResponseWriter, r *http.Request) {
	draftID := r.URL.Query().Get("draftId")
	if draftID == "" {
		respondError(w, http.StatusBadRequest, "draftId is required")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	view, err := h.Checkout.GetCheckout(ctx, userIDFromContext(ctx), draftID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "checkout", envelope{"checkout": view})
}

// ValidateCoupon handles POST /coupon/validate
func (h *Handlers) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req ValidateCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DraftID == "" || req.CouponCode == "" {
		respondError(w, http.StatusBadRequest, "draftId and couponCode are required")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	check, err := h.Checkout.ValidateCoupon(ctx, userIDFromContext(ctx), req.DraftID, req.CouponCode)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "coupon applied", envelope{
		"discount": check.Discount,
		"total":    check.Quote.Total,
		"quote":    check.Quote,
	})
}

// Confirm handles POST /checkout/done
func (h *Handlers) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DraftID == "" || req.AddressID == "" {
		respondError(w, http.StatusBadRequest, "draftId and addressId are required")
		return
	}
	pay, err := domain.ParsePayment(req.PaymentMethod, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	order, err := h.Checkout.Confirm(ctx, service.ConfirmRequest{
		UserID:         userIDFromContext(ctx),
		DraftID:        req.DraftID,
		AddressID:      req.AddressID,
		Payment:        pay,
		CouponCode:     req.CouponCode,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "order placed", envelope{"order": order})
}

// InitiatePayment handles POST /razorpay/initiate
func (h *Handlers) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DraftID == "" {
		respondError(w, http.StatusBadRequest, "draftId is required")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	intent, err := h.Checkout.InitiatePayment(ctx, userIDFromContext(ctx), req.DraftID, req.CouponCode)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "payment initiated", envelope{"payment": intent})
}
