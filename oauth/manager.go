package oauth

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/commitly/commitly/models"
	"github.com/commitly/commitly/session"
)

// Manager routes login and callback requests to the registered auth
// services and finalizes sessions on success.
type Manager struct {
	services       map[string]AuthService
	sessionManager *session.Manager
	store          *session.Store
	mu             sync.RWMutex
}

func NewManager(sessionManager *session.Manager, store *session.Store) *Manager {
	return &Manager{
		services:       make(map[string]AuthService),
		sessionManager: sessionManager,
		store:          store,
	}
}

// RegisterService registers any service that implements AuthService.
func (m *Manager) RegisterService(name string, service AuthService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[name] = service
	log.Printf("Registered auth service: %s", name)
}

// GetService returns an AuthService by registered name.
func (m *Manager) GetService(name string) (AuthService, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	service, exists := m.services[name]
	return service, exists
}

func (m *Manager) HandleLogin(serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		service, exists := m.services[serviceName]
		m.mu.RUnlock()

		if exists {
			service.HandleLogin(w, r)
			return
		}

		log.Printf("Auth service '%s' not found for login request", serviceName)
		http.Error(w, fmt.Sprintf("Auth service '%s' not found", serviceName), http.StatusNotFound)
	}
}

// HandleCallback finishes the login: it creates the backend session, sets
// the cookie and publishes the authenticated snapshot to the auth store.
func (m *Manager) HandleCallback(serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		service, exists := m.services[serviceName]
		m.mu.RUnlock()

		if !exists {
			log.Printf("Auth service '%s' not found for callback request", serviceName)
			http.Error(w, fmt.Sprintf("OAuth service '%s' not found", serviceName), http.StatusNotFound)
			return
		}

		userID, user, err := service.HandleCallback(w, r)
		if err != nil {
			log.Printf("Error handling callback for service '%s': %v", serviceName, err)
			http.Error(w, fmt.Sprintf("Error handling callback for service '%s'", serviceName), http.StatusInternalServerError)
			return
		}

		if userID == "" {
			log.Printf("Callback for service '%s' did not resolve a user", serviceName)
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		sess := m.sessionManager.CreateSession(userID)
		m.sessionManager.SetSessionCookie(w, sess)
		m.store.SetAuth(&models.AuthTokens{SessionID: sess.ID}, user)

		log.Printf("Created session for user %s via service %s", userID, serviceName)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
