package oauth

import (
	"net/http"

	"github.com/commitly/commitly/models"
)

// AuthService is one configured authentication provider managed by the
// Manager.
type AuthService interface {
	// HandleLogin initiates the login flow for the provider.
	HandleLogin(w http.ResponseWriter, r *http.Request)
	// HandleCallback exchanges the provider callback for a local user,
	// creating the profile when needed. An empty user ID means the
	// authentication did not resolve to a user.
	HandleCallback(w http.ResponseWriter, r *http.Request) (string, *models.AuthUser, error)
}

// TokenReceiver turns a provider access token into a local user. The
// accounts service implements this; it resolves the provider identity,
// creates or fetches the profile and links the provider login.
type TokenReceiver interface {
	SetAccessToken(token string) (string, *models.AuthUser, error)
}
