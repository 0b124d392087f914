package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"codemart/internal/analytics"
	"codemart/internal/logger"
)

type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.Summarize(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetSummary: %v", err))
		http.Error(w, "Failed to compute analytics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetSummary: failed to encode response: %v", err))
	}
}
