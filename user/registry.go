// Package user resolves logins and bearer tokens to accounts declared in
// the server settings.
package user

import (
	"crypto/subtle"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/parleychat/parley/settings"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// User is one account known to the server.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type account struct {
	id       string
	username string
	password string
}

// Registry holds the accounts derived from settings and the bearer tokens
// issued to them. User IDs are preserved across settings reloads so existing
// sessions keep referring to the same people.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*account
	tokens map[string]string // token → user ID
}

// NewRegistry creates a registry for the given accounts.
func NewRegistry(users []settings.UserConfig) *Registry {
	r := &Registry{
		byName: make(map[string]*account),
		tokens: make(map[string]string),
	}
	r.apply(users)
	return r
}

// OnSettingsChange re-syncs accounts after a settings reload. Implements
// settings.OnChangeListener.
func (r *Registry) OnSettingsChange(s settings.Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apply(s.Users)
}

// apply reconciles accounts with the configured users. Existing usernames
// keep their IDs; removed users lose their accounts and issued tokens.
// Caller must hold r.mu write lock (or own r exclusively).
func (r *Registry) apply(users []settings.UserConfig) {
	next := make(map[string]*account, len(users))
	for _, u := range users {
		if prev, ok := r.byName[u.Username]; ok {
			prev.password = u.Password
			next[u.Username] = prev
			continue
		}
		next[u.Username] = &account{
			id:       uuid.Must(uuid.NewV7()).String(),
			username: u.Username,
			password: u.Password,
		}
	}
	r.byName = next

	keep := make(map[string]bool, len(next))
	for _, acc := range next {
		keep[acc.id] = true
	}
	for token, userID := range r.tokens {
		if !keep[userID] {
			delete(r.tokens, token)
		}
	}
}

// Login verifies credentials and issues a bearer token. Each successful
// login issues a fresh token; earlier tokens stay valid until the user is
// removed from settings.
func (r *Registry) Login(username, password string) (User, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.byName[username]
	if !ok {
		// Burn comparable time so missing users are not distinguishable
		// from wrong passwords.
		subtle.ConstantTimeCompare([]byte(password), []byte(password))
		return User{}, "", ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(acc.password)) != 1 {
		return User{}, "", ErrInvalidCredentials
	}

	token := uuid.Must(uuid.NewV7()).String()
	r.tokens[token] = acc.id
	return User{ID: acc.id, Username: acc.username}, token, nil
}

// Authenticate resolves a bearer token to its user.
func (r *Registry) Authenticate(token string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.tokens[token]
	if !ok {
		return User{}, false
	}
	for _, acc := range r.byName {
		if acc.id == userID {
			return User{ID: acc.id, Username: acc.username}, true
		}
	}
	return User{}, false
}

// Lookup resolves a username to its user.
func (r *Registry) Lookup(username string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.byName[username]
	if !ok {
		return User{}, false
	}
	return User{ID: acc.id, Username: acc.username}, true
}
