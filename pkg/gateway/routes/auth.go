package routes

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/medledger/platform/pkg/common/logger"
	"github.com/medledger/platform/pkg/common/models"
	gatewayauth "github.com/medledger/platform/pkg/gateway/auth"
	"github.com/medledger/platform/pkg/gateway/middleware"
	"github.com/medledger/platform/pkg/identity"
	"github.com/medledger/platform/pkg/observability/metrics"
)

type AuthHandler struct {
	service     *identity.Service
	tokenSigner *gatewayauth.JWTManager
	sso         *SSOHandler
}

func NewAuthHandler(service *identity.Service, tokenSigner *gatewayauth.JWTManager, sso *SSOHandler) *AuthHandler {
	return &AuthHandler{service: service, tokenSigner: tokenSigner, sso: sso}
}

func (h *AuthHandler) Register(r *mux.Router) {
	r.HandleFunc("/auth/signup", h.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/wallet-login", h.handleWalletLogin).Methods(http.MethodPost)

	if h.sso != nil {
		h.sso.Register(r)
	}

	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(h.tokenSigner))
	protected.HandleFunc("/auth/me", h.handleMe).Methods(http.MethodGet)
}

func (h *AuthHandler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	user, err := h.service.Signup(r.Context(), req)
	if err != nil {
		logger.Log.WithError(err).Warn("signup failed")
		writeServiceError(w, err)
		return
	}

	token, err := h.tokenSigner.IssueToken(user)
	if err != nil {
		logger.Log.WithError(err).Error("issue token failed during signup")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, models.AuthResponse{
		Token: token,
		User:  user,
	})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	user, err := h.service.AuthenticatePassword(r.Context(), req.Email, req.Password)
	if err != nil {
		metrics.IncAuthFailure()
		logger.Log.WithError(err).Warn("authentication failed")
		writeServiceError(w, err)
		return
	}

	h.issueAndRespond(w, user)
}

func (h *AuthHandler) handleWalletLogin(w http.ResponseWriter, r *http.Request) {
	var req models.WalletLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	user, err := h.service.AuthenticateWallet(r.Context(), req)
	if err != nil {
		metrics.IncAuthFailure()
		logger.Log.WithError(err).Warn("wallet authentication failed")
		writeServiceError(w, err)
		return
	}

	h.issueAndRespond(w, user)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := resolveActor(r, h.service)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) issueAndRespond(w http.ResponseWriter, user models.User) {
	token, err := h.tokenSigner.IssueToken(user)
	if err != nil {
		logger.Log.WithError(err).Error("failed issuing token")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, models.AuthResponse{
		Token: token,
		User:  user,
	})
}
