package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"codemart/internal/config"
	"codemart/internal/logger"
	"codemart/internal/models"

	"github.com/google/uuid"
)

type Handler struct {
	DB     *DB
	Config config.AuthConfig
	Logger *logger.Logger
}

func NewHandler(db *DB, cfg config.AuthConfig, log *logger.Logger) *Handler {
	return &Handler{DB: db, Config: cfg, Logger: log}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	User         *models.User `json:"user"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") || req.Name == "" || req.Password == "" {
		http.Error(w, "email, name and password are required", http.StatusBadRequest)
		return
	}

	if _, err := h.DB.GetUserByEmail(r.Context(), req.Email); err == nil {
		http.Error(w, "Email already registered", http.StatusBadRequest)
		return
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Register: %v", err))
		http.Error(w, "Failed to register", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hashed,
		Role:         models.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.DB.CreateUser(r.Context(), user); err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Register: failed to create user: %v", err))
		http.Error(w, "Failed to register", http.StatusInternalServerError)
		return
	}

	h.Logger.Info("AUTH", fmt.Sprintf("Registered user %s", user.ID))
	h.writeTokens(w, user, http.StatusCreated)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.DB.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || !CheckPassword(req.Password, user.PasswordHash) {
		h.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("Failed login attempt for %s", req.Email))
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	h.writeTokens(w, user, http.StatusOK)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.DB.GetUserByID(r.Context(), UserID(r.Context()))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}
		http.Error(w, "Failed to load user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(user); err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Me: failed to encode response: %v", err))
	}
}

func (h *Handler) writeTokens(w http.ResponseWriter, user *models.User, status int) {
	access, err := CreateToken(h.Config.JWTSecret, user.ID, h.Config.AccessTokenTTL)
	if err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Failed to create access token: %v", err))
		http.Error(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}
	refresh, err := CreateToken(h.Config.JWTSecret, user.ID, h.Config.RefreshTokenTTL)
	if err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Failed to create refresh token: %v", err))
		http.Error(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		User:         user,
	}); err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Failed to encode token response: %v", err))
	}
}
