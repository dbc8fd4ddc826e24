package session

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/commitly/commitly/models"
)

// Revoker revokes a backend session remotely. Revocation is best-effort:
// sign-out proceeds locally even when the remote call fails.
type Revoker interface {
	RevokeSession(ctx context.Context, sessionID string) error
}

type persistedState struct {
	Tokens models.AuthTokens `json:"tokens"`
	User   *models.AuthUser  `json:"user"`
}

// Store holds the current session token and user identity for the process.
// It is constructed once at the composition root and passed by reference;
// consumers must not act on auth state until IsLoading reports false.
type Store struct {
	mu              sync.RWMutex
	isLoading       bool
	isAuthenticated bool
	tokens          *models.AuthTokens
	user            *models.AuthUser

	path    string
	revoker Revoker
	logger  *log.Logger
}

func NewStore(path string, revoker Revoker) *Store {
	return &Store{
		isLoading: true,
		path:      path,
		revoker:   revoker,
		logger:    log.New(os.Stdout, "session: ", log.LstdFlags|log.Lmsgprefix),
	}
}

// Hydrate loads the persisted session from secure storage. Absent or
// malformed state completes loading without authentication. Safe to call
// more than once.
func (s *Store) Hydrate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		s.isLoading = false
		return
	}

	var state persistedState
	if err := json.Unmarshal(raw, &state); err != nil || state.Tokens.SessionID == "" {
		s.isLoading = false
		return
	}

	s.tokens = &state.Tokens
	s.user = state.User
	s.isAuthenticated = true
	s.isLoading = false
}

// SetAuth replaces the in-memory state and keeps the persisted copy in sync:
// non-nil tokens are written to storage, nil tokens clear it.
func (s *Store) SetAuth(tokens *models.AuthTokens, user *models.AuthUser) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = tokens
	s.user = user
	s.isAuthenticated = tokens != nil
	s.isLoading = false

	if tokens == nil {
		s.clearPersisted()
		return
	}

	state := persistedState{Tokens: *tokens, User: user}
	raw, err := json.Marshal(state)
	if err != nil {
		s.logger.Printf("Error serializing session state: %v", err)
		return
	}

	if dir := filepath.Dir(s.path); dir != "." {
		os.MkdirAll(dir, 0700)
	}
	if err := os.WriteFile(s.path, raw, 0600); err != nil {
		s.logger.Printf("Error persisting session state: %v", err)
	}
}

// SignOut revokes the remote session best-effort, then unconditionally
// clears local and persisted state.
func (s *Store) SignOut(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revoker != nil && s.tokens != nil {
		if err := s.revoker.RevokeSession(ctx, s.tokens.SessionID); err != nil {
			s.logger.Printf("Error revoking remote session: %v", err)
		}
	}

	s.tokens = nil
	s.user = nil
	s.isAuthenticated = false
	s.clearPersisted()
}

func (s *Store) clearPersisted() {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Printf("Error clearing persisted session: %v", err)
	}
}

// IsLoading reports whether hydration has not completed yet. Callers gate
// redirects and protected actions on it.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isAuthenticated
}

func (s *Store) Tokens() *models.AuthTokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

func (s *Store) User() *models.AuthUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}
