package notifications

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// WelcomeClient invokes the hosted welcome function. Calls are authenticated
// with a short-lived ES256 token minted from the configured signing key.
type WelcomeClient struct {
	httpClient *http.Client
	url        string
	projectID  string
	signingKey jwk.Key
	keyID      string
}

// NewWelcomeClient parses the signing key from its JWK JSON form. The key ID
// goes into the token header so the function can pick the right public key.
func NewWelcomeClient(url, projectID string, signingKeyJSON []byte, keyID string) (*WelcomeClient, error) {
	key, err := jwk.ParseKey(signingKeyJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to parse welcome signing key: %w", err)
	}

	return &WelcomeClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		url:        url,
		projectID:  projectID,
		signingKey: key,
		keyID:      keyID,
	}, nil
}

func (c *WelcomeClient) mintToken(userID string) (string, error) {
	var privKey ecdsa.PrivateKey
	if err := c.signingKey.Raw(&privKey); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	unsigned, err := jwt.NewBuilder().
		Issuer(c.projectID).
		Subject(userID).
		IssuedAt(now).
		Expiration(now.Add(5 * time.Minute)).
		Build()
	if err != nil {
		return "", err
	}

	headers := jws.NewHeaders()
	_ = headers.Set(jws.KeyIDKey, c.keyID)
	signed, err := jwt.Sign(unsigned, jwt.WithKey(jwa.ES256, &privKey, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return "", err
	}

	return string(signed), nil
}

type welcomeRequest struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	PushToken string `json:"pushToken,omitempty"`
}

// SendWelcome calls the welcome function for a freshly onboarded user.
func (c *WelcomeClient) SendWelcome(ctx context.Context, userID, username, pushToken string) error {
	token, err := c.mintToken(userID)
	if err != nil {
		return fmt.Errorf("failed to mint welcome token: %w", err)
	}

	body, err := json.Marshal(welcomeRequest{
		UserID:    userID,
		Username:  username,
		PushToken: pushToken,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Commitly-Project", c.projectID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("welcome function error (%d): %s", resp.StatusCode, raw)
	}

	return nil
}
