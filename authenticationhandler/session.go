// authenticationhandler/session.go
package authenticationhandler

import (
	"sync"

	"golang.org/x/oauth2"
)

// Session is the credential holder for one FHIR service. It carries the identity of the
// remote service and the current OAuth2 token. The token is only ever replaced as a whole,
// so a reader sees either the old token or the new one.
type Session struct {
	ServiceName    string // ServiceName identifies the remote service in logs.
	BaseServiceURL string // BaseServiceURL is the FHIR base, e.g. https://fhir.example.org/r4.

	tokenLock sync.RWMutex
	token     *oauth2.Token
}

// NewSession creates a Session. token may be nil, in which case the first guarded request
// builds one from the configured credentials.
func NewSession(serviceName, baseServiceURL string, token *oauth2.Token) *Session {
	return &Session{
		ServiceName:    serviceName,
		BaseServiceURL: baseServiceURL,
		token:          token,
	}
}

// Token returns the current token. Callers must not modify it.
func (s *Session) Token() *oauth2.Token {
	s.tokenLock.RLock()
	defer s.tokenLock.RUnlock()
	return s.token
}

// SetToken replaces the held token.
func (s *Session) SetToken(token *oauth2.Token) {
	s.tokenLock.Lock()
	defer s.tokenLock.Unlock()
	s.token = token
}

// HasRefreshToken reports whether the current token carries a refresh token.
func (s *Session) HasRefreshToken() bool {
	token := s.Token()
	return token != nil && token.RefreshToken != ""
}
