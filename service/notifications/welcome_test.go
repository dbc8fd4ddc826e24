package notifications

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

func testSigningKey(t *testing.T) []byte {
	t.Helper()

	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	key, err := jwk.FromRaw(privKey)
	if err != nil {
		t.Fatalf("Failed to build jwk: %v", err)
	}

	raw, err := json.Marshal(key)
	if err != nil {
		t.Fatalf("Failed to marshal jwk: %v", err)
	}
	return raw
}

func TestWelcomeClient_SendWelcome(t *testing.T) {
	type call struct {
		auth    string
		project string
		body    welcomeRequest
	}
	calls := make(chan call, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body welcomeRequest
		json.NewDecoder(r.Body).Decode(&body)
		calls <- call{
			auth:    r.Header.Get("Authorization"),
			project: r.Header.Get("X-Commitly-Project"),
			body:    body,
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewWelcomeClient(srv.URL, "com.commitly.app", testSigningKey(t), "key-1")
	if err != nil {
		t.Fatalf("Failed to create welcome client: %v", err)
	}

	err = client.SendWelcome(context.Background(), "user-1", "octocat", "ExponentPushToken[abc]")
	if err != nil {
		t.Fatalf("SendWelcome failed: %v", err)
	}

	got := <-calls
	if !strings.HasPrefix(got.auth, "Bearer ") || len(got.auth) < 20 {
		t.Errorf("Expected signed bearer token, got %q", got.auth)
	}
	if got.project != "com.commitly.app" {
		t.Errorf("Expected project header, got %q", got.project)
	}
	if got.body.UserID != "user-1" || got.body.Username != "octocat" {
		t.Errorf("Unexpected payload: %+v", got.body)
	}
	if got.body.PushToken != "ExponentPushToken[abc]" {
		t.Errorf("Expected push token forwarded, got %q", got.body.PushToken)
	}
}

func TestWelcomeClient_RejectsBadKey(t *testing.T) {
	if _, err := NewWelcomeClient("http://localhost", "p", []byte("not a key"), "key-1"); err == nil {
		t.Error("Expected error for malformed signing key")
	}
}

func TestDispatchWelcome_QueuedThroughWorker(t *testing.T) {
	calls := make(chan welcomeRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body welcomeRequest
		json.NewDecoder(r.Body).Decode(&body)
		calls <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewWelcomeClient(srv.URL, "com.commitly.app", testSigningKey(t), "key-1")
	if err != nil {
		t.Fatalf("Failed to create welcome client: %v", err)
	}

	svc := NewService(nil, &fakePlatform{}, nil, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.StartWelcomeWorker(ctx)

	svc.DispatchWelcome("user-1", "octocat", "")

	select {
	case body := <-calls:
		if body.UserID != "user-1" {
			t.Errorf("Expected welcome for user-1, got %+v", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for welcome call")
	}
}
