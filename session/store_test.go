package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/commitly/commitly/models"
)

type fakeRevoker struct {
	revoked []string
	err     error
}

func (f *fakeRevoker) RevokeSession(_ context.Context, sessionID string) error {
	f.revoked = append(f.revoked, sessionID)
	return f.err
}

func strPtr(s string) *string { return &s }

func storagePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "session.json")
}

func TestHydrate_NoPersistedState(t *testing.T) {
	store := NewStore(storagePath(t), nil)

	if !store.IsLoading() {
		t.Fatal("Expected store to start in loading state")
	}

	store.Hydrate()

	if store.IsLoading() {
		t.Error("Expected loading finished after hydration")
	}
	if store.IsAuthenticated() {
		t.Error("Expected unauthenticated without persisted state")
	}
}

func TestHydrate_ValidState(t *testing.T) {
	path := storagePath(t)

	state := persistedState{
		Tokens: models.AuthTokens{SessionID: "sess-1"},
		User:   &models.AuthUser{ID: "user-1", Name: strPtr("Octo Cat")},
	}
	raw, _ := json.Marshal(state)
	if err := os.WriteFile(path, raw, 0600); err != nil {
		t.Fatalf("Failed to seed storage: %v", err)
	}

	store := NewStore(path, nil)
	store.Hydrate()

	if store.IsLoading() {
		t.Error("Expected loading finished")
	}
	if !store.IsAuthenticated() {
		t.Fatal("Expected authenticated after hydrating valid state")
	}
	if store.Tokens().SessionID != "sess-1" {
		t.Errorf("Expected session sess-1, got %q", store.Tokens().SessionID)
	}
	if u := store.User(); u == nil || u.ID != "user-1" {
		t.Errorf("Expected user-1, got %+v", u)
	}
}

func TestHydrate_MalformedState(t *testing.T) {
	path := storagePath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("Failed to seed storage: %v", err)
	}

	store := NewStore(path, nil)
	store.Hydrate()

	if store.IsLoading() || store.IsAuthenticated() {
		t.Error("Expected unauthenticated, finished loading on malformed state")
	}
}

func TestHydrate_EmptySessionID(t *testing.T) {
	path := storagePath(t)
	raw, _ := json.Marshal(persistedState{})
	if err := os.WriteFile(path, raw, 0600); err != nil {
		t.Fatalf("Failed to seed storage: %v", err)
	}

	store := NewStore(path, nil)
	store.Hydrate()

	if store.IsAuthenticated() {
		t.Error("Expected unauthenticated for state without session id")
	}
}

func TestSetAuth_PersistsAndClears(t *testing.T) {
	path := storagePath(t)
	store := NewStore(path, nil)
	store.Hydrate()

	store.SetAuth(&models.AuthTokens{SessionID: "sess-1"}, &models.AuthUser{ID: "user-1"})

	if !store.IsAuthenticated() {
		t.Fatal("Expected authenticated after SetAuth")
	}

	// a fresh store sees the persisted snapshot
	second := NewStore(path, nil)
	second.Hydrate()
	if !second.IsAuthenticated() {
		t.Error("Expected persisted state to hydrate a fresh store")
	}

	store.SetAuth(nil, nil)
	if store.IsAuthenticated() {
		t.Error("Expected unauthenticated after clearing")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected persisted state removed after clearing")
	}
}

func TestSignOut_RevokesAndClears(t *testing.T) {
	path := storagePath(t)
	revoker := &fakeRevoker{}
	store := NewStore(path, revoker)

	store.SetAuth(&models.AuthTokens{SessionID: "sess-1"}, &models.AuthUser{ID: "user-1"})
	store.SignOut(context.Background())

	if len(revoker.revoked) != 1 || revoker.revoked[0] != "sess-1" {
		t.Errorf("Expected sess-1 revoked, got %v", revoker.revoked)
	}
	if store.IsAuthenticated() || store.Tokens() != nil || store.User() != nil {
		t.Error("Expected all auth state cleared after sign-out")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected persisted state removed after sign-out")
	}
}

func TestSignOut_ClearsEvenWhenRevocationFails(t *testing.T) {
	path := storagePath(t)
	revoker := &fakeRevoker{err: errors.New("network down")}
	store := NewStore(path, revoker)

	store.SetAuth(&models.AuthTokens{SessionID: "sess-1"}, nil)
	store.SignOut(context.Background())

	if store.IsAuthenticated() {
		t.Error("Expected local sign-out despite revocation failure")
	}
}
