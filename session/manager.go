package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/commitly/commitly/db"
)

// Session is one authenticated backend session, created on OAuth callback.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Manager issues and validates backend sessions for the HTTP surface. It
// keeps an in-memory cache in front of the sessions table.
type Manager struct {
	db       *db.DB
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewManager(database *db.DB) *Manager {
	_, err := database.Exec(`
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at TIMESTAMP,
		expires_at TIMESTAMP
	)`)
	if err != nil {
		log.Printf("Error creating sessions table: %v", err)
	}

	return &Manager{
		db:       database,
		sessions: make(map[string]*Session),
	}
}

// CreateSession creates a new session for a user.
func (sm *Manager) CreateSession(userID string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	b := make([]byte, 32)
	rand.Read(b)
	sessionID := base64.URLEncoding.EncodeToString(b)

	now := time.Now().UTC()
	expiresAt := now.Add(24 * time.Hour) // 24-hour session

	session := &Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}

	sm.sessions[sessionID] = session

	if sm.db != nil {
		_, err := sm.db.Exec(`
		INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
			sessionID, userID, now, expiresAt)
		if err != nil {
			log.Printf("Error storing session in database: %v", err)
		}
	}

	return session
}

// GetSession retrieves a session by ID, falling back to the database when
// the in-memory cache misses.
func (sm *Manager) GetSession(sessionID string) (*Session, bool) {
	sm.mu.RLock()
	session, exists := sm.sessions[sessionID]
	sm.mu.RUnlock()

	if exists {
		if time.Now().UTC().After(session.ExpiresAt) {
			sm.DeleteSession(sessionID)
			return nil, false
		}
		return session, true
	}

	if sm.db != nil {
		session = &Session{ID: sessionID}

		err := sm.db.QueryRow(`
		SELECT user_id, created_at, expires_at
		FROM sessions WHERE id = ?`, sessionID).Scan(
			&session.UserID, &session.CreatedAt, &session.ExpiresAt)
		if err != nil {
			return nil, false
		}

		if time.Now().UTC().After(session.ExpiresAt) {
			sm.DeleteSession(sessionID)
			return nil, false
		}

		sm.mu.Lock()
		sm.sessions[sessionID] = session
		sm.mu.Unlock()

		return session, true
	}

	return nil, false
}

// DeleteSession removes a session from cache and database.
func (sm *Manager) DeleteSession(sessionID string) {
	sm.mu.Lock()
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()

	if sm.db != nil {
		_, err := sm.db.Exec("DELETE FROM sessions WHERE id = ?", sessionID)
		if err != nil {
			log.Printf("Error deleting session from database: %v", err)
		}
	}
}

// RevokeSession satisfies the Store's Revoker: local session deletion is the
// backend-side revocation for this deployment.
func (sm *Manager) RevokeSession(_ context.Context, sessionID string) error {
	sm.DeleteSession(sessionID)
	return nil
}

// SetSessionCookie sets the session cookie for a user.
func (sm *Manager) SetSessionCookie(w http.ResponseWriter, session *Session) {
	cookie := &http.Cookie{
		Name:     "session",
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		Expires:  session.ExpiresAt,
	}
	http.SetCookie(w, cookie)
}

// ClearSessionCookie clears the session cookie.
func (sm *Manager) ClearSessionCookie(w http.ResponseWriter) {
	cookie := &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		MaxAge:   -1,
	}
	http.SetCookie(w, cookie)
}

// HandleLogout tears down the backend session and clears the cookie. The
// auth snapshot store is signed out by the handler layer.
func (sm *Manager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("session")
	if err == nil {
		sm.DeleteSession(cookie.Value)
	}

	sm.ClearSessionCookie(w)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// WithAuth wraps a handler and rejects requests without a valid session.
func WithAuth(handler http.HandlerFunc, sm *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil {
			http.Redirect(w, r, "/login/github", http.StatusSeeOther)
			return
		}

		session, exists := sm.GetSession(cookie.Value)
		if !exists {
			http.Redirect(w, r, "/login/github", http.StatusSeeOther)
			return
		}

		ctx := WithUserID(r.Context(), session.UserID)
		handler(w, r.WithContext(ctx))
	}
}

// WithAPIAuth guards JSON endpoints: unauthenticated requests get a 401
// instead of a redirect.
func WithAPIAuth(handler http.HandlerFunc, sm *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err == nil {
			if session, exists := sm.GetSession(cookie.Value); exists {
				ctx := WithUserID(r.Context(), session.UserID)
				handler(w, r.WithContext(ctx))
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Unauthorized"}`))
	}
}

// WithPossibleAuth attaches the user when a session exists but lets the
// request through either way.
func WithPossibleAuth(handler http.HandlerFunc, sm *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		authenticated := false

		cookie, err := r.Cookie("session")
		if err == nil {
			session, exists := sm.GetSession(cookie.Value)
			if exists {
				ctx = WithUserID(ctx, session.UserID)
				authenticated = true
			}
		}

		handler(w, r.WithContext(WithAuthStatus(ctx, authenticated)))
	}
}

type contextKey int

const (
	userIDKey contextKey = iota
	authStatusKey
)

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}

func WithAuthStatus(ctx context.Context, isAuthed bool) context.Context {
	return context.WithValue(ctx, authStatusKey, isAuthed)
}

func IsAuthenticated(ctx context.Context) bool {
	isAuthed, ok := ctx.Value(authStatusKey).(bool)
	return ok && isAuthed
}
