package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"codemart/internal/auth"
	"codemart/internal/logger"
	"codemart/internal/review"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *review.Service
	Logger  *logger.Logger
}

func NewHandler(service *review.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

type submitReviewRequest struct {
	ProductID string `json:"product_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req submitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ProductID == "" {
		http.Error(w, "product_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	rev, err := h.Service.Submit(ctx, auth.UserID(ctx), auth.UserName(ctx), req.ProductID, req.Rating, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, review.ErrInvalidRating), errors.Is(err, review.ErrAlreadyReviewed):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, review.ErrNotPurchased):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			h.Logger.Error("API", fmt.Sprintf("SubmitReview: %v", err))
			http.Error(w, "Failed to submit review", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(rev); err != nil {
		h.Logger.Error("API", fmt.Sprintf("SubmitReview: failed to encode response: %v", err))
	}
}

func (h *Handler) ListProductReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.Service.ListForProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListProductReviews: %v", err))
		http.Error(w, "Failed to list reviews", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reviews); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListProductReviews: failed to encode response: %v", err))
	}
}

func (h *Handler) ListPendingReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.Service.ListPending(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListPendingReviews: %v", err))
		http.Error(w, "Failed to list reviews", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reviews); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListPendingReviews: failed to encode response: %v", err))
	}
}

func (h *Handler) ApproveReview(w http.ResponseWriter, r *http.Request) {
	rev, err := h.Service.Approve(r.Context(), chi.URLParam(r, "reviewId"))
	if err != nil {
		if errors.Is(err, review.ErrReviewNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("ApproveReview: %v", err))
		http.Error(w, "Failed to approve review", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rev); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ApproveReview: failed to encode response: %v", err))
	}
}
