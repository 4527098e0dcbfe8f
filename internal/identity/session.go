// Package identity tracks who is signed in and tells subscribers when that changes.
package identity

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pedroasavelar91/nexus-familiar/pkg/auth"
)

type Identity struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}

// Name returns the display name, falling back to the email's local part.
func (i Identity) Name() string {
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(i.Email, "@"); ok && local != "" {
		return local
	}
	return i.Email
}

// Source is the read side of a session consumed by the household services.
type Source interface {
	Current() *Identity
	Subscribe(fn func(*Identity)) (unsubscribe func())
}

// Session holds the current identity. Subscribers are called synchronously,
// in subscription order, after every change.
type Session struct {
	mu      sync.RWMutex
	current *Identity
	subs    map[int]func(*Identity)
	order   []int
	nextID  int
}

var _ Source = (*Session)(nil)

func NewSession() *Session {
	return &Session{subs: map[int]func(*Identity){}}
}

// Current returns a copy of the signed-in identity, or nil.
func (s *Session) Current() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

func (s *Session) SignIn(id Identity) error {
	if id.ID == uuid.Nil {
		return fmt.Errorf("identity id is required")
	}
	s.mu.Lock()
	cp := id
	s.current = &cp
	s.mu.Unlock()
	s.publish()
	return nil
}

func (s *Session) SignOut() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	s.publish()
}

func (s *Session) Subscribe(fn func(*Identity)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.order = append(s.order, id)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Session) publish() {
	current := s.Current()
	s.mu.RLock()
	fns := make([]func(*Identity), 0, len(s.subs))
	for _, id := range s.order {
		if fn, ok := s.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(current)
	}
}

// FromClaims maps verified token claims to an identity.
func FromClaims(claims *auth.AccessTokenClaims) Identity {
	return Identity{ID: claims.UserID, Email: claims.Email, DisplayName: claims.Name}
}

// FromAccessToken decodes the identity carried by a bearer token without
// verifying its signature; the API verifies it on every request.
func FromAccessToken(token string) (Identity, error) {
	claims, err := auth.ParseUnverified(strings.TrimSpace(token))
	if err != nil {
		return Identity{}, fmt.Errorf("decode access token: %w", err)
	}
	return FromClaims(claims), nil
}
