package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"codemart/internal/auth"
	"codemart/internal/coupon"
	"codemart/internal/license"
	"codemart/internal/logger"
	"codemart/internal/order"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	OrderService *order.OrderService
	QR           *license.QRGenerator
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, qr *license.QRGenerator, log *logger.Logger) *Handler {
	return &Handler{OrderService: orderService, QR: qr, Logger: log}
}

type createOrderRequest struct {
	ProductID  string `json:"product_id"`
	CouponCode string `json:"coupon_code,omitempty"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ProductID == "" {
		http.Error(w, "product_id is required", http.StatusBadRequest)
		return
	}

	userID := auth.UserID(r.Context())
	h.Logger.Info("API", fmt.Sprintf("CreateOrder: product=%s user=%s coupon=%q", req.ProductID, userID, req.CouponCode))

	result, err := h.OrderService.CreateOrder(r.Context(), userID, req.ProductID, req.CouponCode)
	if err != nil {
		h.writeOrderError(w, "CreateOrder", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to encode response: %v", err))
	}
}

type verifyPaymentRequest struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	GatewaySignature string `json:"gateway_signature"`
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.GatewaySignature == "" {
		http.Error(w, "gateway_order_id, gateway_payment_id and gateway_signature are required", http.StatusBadRequest)
		return
	}

	licenseKey, err := h.OrderService.VerifyPayment(r.Context(), req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature)
	if err != nil {
		h.writeOrderError(w, "VerifyPayment", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"message":     "Payment verified",
		"license_key": licenseKey,
	}); err != nil {
		h.Logger.Error("API", fmt.Sprintf("VerifyPayment: failed to encode response: %v", err))
	}
}

func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.OrderService.MyOrders(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("MyOrders: %v", err))
		http.Error(w, "Failed to list orders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orders); err != nil {
		h.Logger.Error("API", fmt.Sprintf("MyOrders: failed to encode response: %v", err))
	}
}

func (h *Handler) AllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.OrderService.AllOrders(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("AllOrders: %v", err))
		http.Error(w, "Failed to list orders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orders); err != nil {
		h.Logger.Error("API", fmt.Sprintf("AllOrders: failed to encode response: %v", err))
	}
}

func (h *Handler) GetDownloadLink(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	link, err := h.OrderService.GetDownloadLink(r.Context(), auth.UserID(r.Context()), orderID)
	if err != nil {
		h.writeOrderError(w, "GetDownloadLink", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(link); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetDownloadLink: failed to encode response: %v", err))
	}
}

// GetLicenseQR renders the order's license key as an encrypted QR code
// for the buyer dashboard.
func (h *Handler) GetLicenseQR(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	key, err := h.OrderService.GetLicense(r.Context(), auth.UserID(r.Context()), orderID)
	if err != nil {
		h.writeOrderError(w, "GetLicenseQR", err)
		return
	}

	png, err := h.QR.GenerateEncryptedQR(key)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetLicenseQR: %v", err))
		http.Error(w, "Failed to render license QR", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetLicenseQR: failed to write response: %v", err))
	}
}

// writeOrderError maps settlement errors onto HTTP statuses.
func (h *Handler) writeOrderError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, order.ErrProductNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrArtifactMissing):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, order.ErrInvalidSignature):
		http.Error(w, "Invalid signature", http.StatusBadRequest)
	case errors.Is(err, order.ErrVerificationInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, order.ErrDownloadLinkUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrMinPurchaseNotMet),
		errors.Is(err, coupon.ErrCouponExhausted):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
