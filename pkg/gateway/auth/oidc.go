package auth

import (
	"fmt"

	"golang.org/x/oauth2"
)

// OIDCAuthenticator holds the OAuth2 configuration for hospital SSO login.
// Optional: the gateway runs with password/wallet auth alone when no issuer
// is configured.
type OIDCAuthenticator struct {
	config *oauth2.Config
	issuer string
}

func NewOIDCAuthenticator(issuer, clientID, clientSecret, redirectURL string) (*OIDCAuthenticator, error) {
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC configuration incomplete")
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("%s/authorize", issuer),
			TokenURL: fmt.Sprintf("%s/token", issuer),
		},
		Scopes: []string{"openid", "profile", "email"},
	}

	return &OIDCAuthenticator{
		config: config,
		issuer: issuer,
	}, nil
}

// AuthURL returns the provider redirect for the given state.
func (a *OIDCAuthenticator) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Config exposes the underlying OAuth2 config for the callback exchange.
func (a *OIDCAuthenticator) Config() *oauth2.Config {
	return a.config
}
