package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"SchoolSuite/internal/logger"
	"SchoolSuite/internal/serviceiface"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type UserSession struct {
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	LastLoginTime string `json:"last_login_time"`
	ClientIP      string `json:"client_ip"`
	IsLoggedIn    bool   `json:"is_logged_in"`
}

type AuthService struct {
	db             *sql.DB
	maxUsers       int
	sessionTimeout time.Duration
	sessions       map[string]*UserSession
	byUser         map[string]*UserSession
	lastSeen       map[string]time.Time
	mu             sync.Mutex
	stopCh         chan struct{}
}

func NewAuthService(db *sql.DB, maxUsers, sessionTimeoutMinutes int) serviceiface.Service {
	if maxUsers <= 0 {
		maxUsers = 50
	}
	if sessionTimeoutMinutes <= 0 {
		sessionTimeoutMinutes = 8 * 60
	}
	return &AuthService{
		db:             db,
		maxUsers:       maxUsers,
		sessionTimeout: time.Duration(sessionTimeoutMinutes) * time.Minute,
		sessions:       make(map[string]*UserSession),
		byUser:         make(map[string]*UserSession),
		lastSeen:       make(map[string]time.Time),
		stopCh:         make(chan struct{}),
	}
}

func (a *AuthService) Name() string { return "auth" }

func (a *AuthService) Start() error {
	go a.sessionCleaner()
	return nil
}

func (a *AuthService) Stop() error {
	close(a.stopCh)
	return nil
}

func (a *AuthService) Login(username, password, clientIP string) (*UserSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var (
		userID, name, hash string
		role               sql.NullString
		active             bool
	)
	err := a.db.QueryRow(`
		SELECT id, full_name, password_hash, role, active
		FROM app_users WHERE username = $1
	`, username).Scan(&userID, &name, &hash, &role, &active)
	if err != nil {
		return nil, errors.New("invalid credentials")
	}
	if !active {
		return nil, errors.New("account is disabled")
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, errors.New("invalid credentials")
	}

	// Reuse the live session on re-login
	if session, ok := a.byUser[userID]; ok {
		session.LastLoginTime = time.Now().Format(time.RFC3339)
		session.ClientIP = clientIP
		a.lastSeen[session.SessionID] = time.Now()
		logger.Audit("User %s re-logged in, returning existing session", username)
		return session, nil
	}
	if len(a.sessions) >= a.maxUsers {
		return nil, errors.New("maximum concurrent users reached")
	}

	session := &UserSession{
		SessionID:     uuid.New().String(),
		UserID:        userID,
		Name:          name,
		Username:      username,
		Role:          role.String,
		LastLoginTime: time.Now().Format(time.RFC3339),
		ClientIP:      clientIP,
		IsLoggedIn:    true,
	}
	a.sessions[session.SessionID] = session
	a.byUser[userID] = session
	a.lastSeen[session.SessionID] = time.Now()
	logger.Audit("User logged in: %s", username)
	return session, nil
}

func (a *AuthService) Logout(sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	session, ok := a.sessions[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	a.drop(session)
	logger.Audit("User logged out: %s", session.Username)
	return nil
}

// ValidateSession refreshes the session activity clock and reports whether
// the session is still live.
func (a *AuthService) ValidateSession(sessionID string) (*UserSession, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	session, ok := a.sessions[sessionID]
	if !ok {
		return nil, false
	}
	a.lastSeen[sessionID] = time.Now()
	return session, true
}

func (a *AuthService) GetActiveSessions() []*UserSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	sessions := make([]*UserSession, 0, len(a.sessions))
	for _, s := range a.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// CreateUser hashes the password and inserts the account row.
func (a *AuthService) CreateUser(username, password, fullName, role string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	var id string
	err = a.db.QueryRow(`
		INSERT INTO app_users (username, password_hash, full_name, role, active)
		VALUES ($1, $2, $3, $4, TRUE) RETURNING id
	`, username, string(hash), fullName, role).Scan(&id)
	if err != nil {
		return "", err
	}
	logger.Audit("User account created: %s (%s)", username, role)
	return id, nil
}

func (a *AuthService) drop(session *UserSession) {
	delete(a.sessions, session.SessionID)
	delete(a.byUser, session.UserID)
	delete(a.lastSeen, session.SessionID)
}

func (a *AuthService) sessionCleaner() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.mu.Lock()
			cutoff := time.Now().Add(-a.sessionTimeout)
			for id, seen := range a.lastSeen {
				if seen.Before(cutoff) {
					if session, ok := a.sessions[id]; ok {
						logger.Audit("Session expired for %s", session.Username)
						a.drop(session)
					}
				}
			}
			a.mu.Unlock()
		}
	}
}
