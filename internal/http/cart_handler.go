package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type AddItemRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart handles GET /cart
func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	summary, err := h.Cart.GetSummary(ctx, userIDFromContext(ctx))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "cart", envelope{"cart": summary})
}

// AddItem handles POST /cart/add
func (h *Handlers) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" || req.Size == "" {
		respondError(w, http.StatusBadRequest, "productId and size are required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	line, err := h.Cart.AddItem(ctx, userIDFromContext(ctx), req.ProductID, req.Size, req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "item added to cart", envelope{"item": line})
}

// UpdateQuantity handles PATCH /cart/items/{lineId}
func (h *Handlers) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineId")
	var req UpdateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	if err := h.Cart.UpdateQuantity(ctx, userIDFromContext(ctx), lineID, req.Quantity); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "quantity updated", nil)
}

// RemoveItem handles DELETE /cart/items/{lineId}
func (h *Handlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineId")

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	if err := h.Cart.RemoveItem(ctx, userIDFromContext(ctx), lineID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, "item removed", nil)
}
