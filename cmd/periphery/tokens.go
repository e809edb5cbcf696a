package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// tokenStore issues and redeems single-use terminal auth tokens (spec
// §4.1, §6: a short-lived token separates the long-lived passkey from
// the websocket connect step). Core obtains these tokens through
// periphclient's CreateTerminalAuthToken; they are kept in memory since a
// Periphery agent has no durable store of its own.
type tokenStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	ttl    time.Duration
}

func newTokenStore() *tokenStore {
	return &tokenStore{tokens: map[string]time.Time{}, ttl: 30 * time.Second}
}

func (s *tokenStore) issue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	token := uuid.NewString()
	s.tokens[token] = time.Now().Add(s.ttl)
	return token
}

// redeem consumes token, returning whether it was valid and unexpired.
// Single-use: a second redeem of the same token fails.
func (s *tokenStore) redeem(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.tokens[token]
	delete(s.tokens, token)
	return ok && time.Now().Before(expiry)
}

func (s *tokenStore) sweepLocked() {
	now := time.Now()
	for t, exp := range s.tokens {
		if now.After(exp) {
			delete(s.tokens, t)
		}
	}
}
