package coupon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"codemart/internal/logger"
	"codemart/internal/models"

	"github.com/google/uuid"
)

// Handler exposes the admin coupon endpoints.
type Handler struct {
	DB     *DB
	Logger *logger.Logger
}

func NewHandler(db *DB, log *logger.Logger) *Handler {
	return &Handler{DB: db, Logger: log}
}

type createCouponRequest struct {
	Code          string     `json:"code"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue float64    `json:"discount_value"`
	MinPurchase   float64    `json:"min_purchase"`
	MaxUses       *int       `json:"max_uses,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}
	if req.DiscountType != models.DiscountFlat && req.DiscountType != models.DiscountPercent {
		http.Error(w, "discount_type must be flat or percent", http.StatusBadRequest)
		return
	}
	if req.DiscountValue <= 0 {
		http.Error(w, "discount_value must be positive", http.StatusBadRequest)
		return
	}
	if req.DiscountType == models.DiscountPercent && req.DiscountValue > 100 {
		http.Error(w, "percent discount cannot exceed 100", http.StatusBadRequest)
		return
	}

	if _, err := h.DB.GetByCode(r.Context(), code); err == nil {
		http.Error(w, "Coupon code already exists", http.StatusBadRequest)
		return
	} else if !errors.Is(err, ErrCouponNotFound) {
		h.Logger.Error("API", fmt.Sprintf("CreateCoupon: %v", err))
		http.Error(w, "Failed to create coupon", http.StatusInternalServerError)
		return
	}

	c := models.Coupon{
		ID:            uuid.NewString(),
		Code:          code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MinPurchase:   req.MinPurchase,
		MaxUses:       req.MaxUses,
		ExpiresAt:     req.ExpiresAt,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.DB.CreateCoupon(r.Context(), &c); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateCoupon: %v", err))
		http.Error(w, "Failed to create coupon", http.StatusInternalServerError)
		return
	}

	h.Logger.Info("COUPON", fmt.Sprintf("Created coupon %s (%s %.2f)", code, c.DiscountType, c.DiscountValue))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(c); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateCoupon: failed to encode response: %v", err))
	}
}

func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.DB.ListCoupons(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListCoupons: %v", err))
		http.Error(w, "Failed to list coupons", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(coupons); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListCoupons: failed to encode response: %v", err))
	}
}
