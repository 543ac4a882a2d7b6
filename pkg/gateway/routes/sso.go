package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/medledger/platform/pkg/common/logger"
	gatewayauth "github.com/medledger/platform/pkg/gateway/auth"
	"github.com/medledger/platform/pkg/identity"
)

// SSOHandler implements the optional hospital single-sign-on flow: redirect
// to the configured OIDC provider, exchange the callback code, match the
// provider identity to a registered account by email, issue a platform JWT.
type SSOHandler struct {
	authenticator *gatewayauth.OIDCAuthenticator
	service       *identity.Service
	tokenSigner   *gatewayauth.JWTManager
	issuer        string
}

func NewSSOHandler(authenticator *gatewayauth.OIDCAuthenticator, service *identity.Service, tokenSigner *gatewayauth.JWTManager, issuer string) *SSOHandler {
	return &SSOHandler{
		authenticator: authenticator,
		service:       service,
		tokenSigner:   tokenSigner,
		issuer:        issuer,
	}
}

func (h *SSOHandler) Register(r *mux.Router) {
	r.HandleFunc("/auth/sso/login", h.handleLogin).Methods(http.MethodGet)
	r.HandleFunc("/auth/sso/callback", h.handleCallback).Methods(http.MethodGet)
}

func (h *SSOHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.Redirect(w, r, h.authenticator.AuthURL(state), http.StatusFound)
}

func (h *SSOHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	token, err := h.authenticator.Config().Exchange(r.Context(), code)
	if err != nil {
		logger.Log.WithError(err).Warn("SSO code exchange failed")
		http.Error(w, "sso exchange failed", http.StatusUnauthorized)
		return
	}

	client := h.authenticator.Config().Client(r.Context(), token)
	resp, err := client.Get(fmt.Sprintf("%s/userinfo", h.issuer))
	if err != nil {
		logger.Log.WithError(err).Warn("SSO userinfo fetch failed")
		http.Error(w, "sso userinfo failed", http.StatusUnauthorized)
		return
	}
	defer resp.Body.Close()

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil || info.Email == "" {
		http.Error(w, "sso userinfo invalid", http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetUserByEmail(r.Context(), info.Email)
	if err != nil {
		logger.Log.WithField("email", info.Email).Warn("SSO identity has no platform account")
		http.Error(w, "no account for sso identity", http.StatusUnauthorized)
		return
	}

	platformToken, err := h.tokenSigner.IssueToken(user)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": platformToken,
		"user":  user,
	})
}
