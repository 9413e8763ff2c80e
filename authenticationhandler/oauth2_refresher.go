// authenticationhandler/oauth2_refresher.go
package authenticationhandler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	// ErrNoTokenSource is returned when no grant is configured that could produce a token.
	ErrNoTokenSource = errors.New("no OAuth2 token source configured")
	// ErrNoRefreshToken is returned by Refresh for a token without a refresh token.
	ErrNoRefreshToken = errors.New("token has no refresh token")
)

// ClientCredentials holds the OAuth2 parameters for a FHIR service.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	AuthURL      string
	Scopes       []string
	AccessToken  string // AccessToken is a pre-issued token, used when no client secret is configured.
	RefreshToken string // RefreshToken seeds the session with a refreshable token.
}

// Validate checks the credentials for the grants they enable.
func (c ClientCredentials) Validate() error {
	if c.ClientID == "" && c.AccessToken == "" {
		return errors.New("either a client ID or an access token is required")
	}
	if c.RefreshToken != "" && c.ClientID == "" {
		return errors.New("a refresh token requires a client ID and token URL for the refresh grant")
	}
	if c.ClientID != "" {
		checks := []func() (bool, string){
			func() (bool, string) { return IsValidClientID(c.ClientID) },
			func() (bool, string) { return IsValidTokenURL(c.TokenURL) },
			func() (bool, string) { return IsValidScope(c.Scopes) },
		}
		for _, check := range checks {
			if ok, msg := check(); !ok {
				return errors.New(msg)
			}
		}
	}
	if c.ClientSecret != "" {
		if ok, msg := IsValidClientSecret(c.ClientSecret); !ok {
			return errors.New(msg)
		}
	}
	return nil
}

// InitialToken returns the token a new Session should start with, or nil when the first
// request has to build one.
func (c ClientCredentials) InitialToken() *oauth2.Token {
	if c.AccessToken == "" && c.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
	}
}

// OAuth2Refresher is the TokenRefresher backed by golang.org/x/oauth2.
type OAuth2Refresher struct {
	Config            *oauth2.Config            // Config drives the refresh_token grant.
	ClientCredentials *clientcredentials.Config // ClientCredentials builds tokens when no refresh token exists.
	StaticToken       *oauth2.Token             // StaticToken is handed out by Build when no client credentials grant is configured.
	HTTPClient        *http.Client              // HTTPClient, if set, is used for token endpoint requests.
}

var _ TokenRefresher = (*OAuth2Refresher)(nil)

// NewOAuth2Refresher derives the refresh and build grants from credentials.
func NewOAuth2Refresher(credentials ClientCredentials, httpClient *http.Client) (*OAuth2Refresher, error) {
	if err := credentials.Validate(); err != nil {
		return nil, fmt.Errorf("invalid OAuth2 credentials: %w", err)
	}

	refresher := &OAuth2Refresher{HTTPClient: httpClient}

	if credentials.ClientID != "" {
		refresher.Config = &oauth2.Config{
			ClientID:     credentials.ClientID,
			ClientSecret: credentials.ClientSecret,
			Scopes:       credentials.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  credentials.AuthURL,
				TokenURL: credentials.TokenURL,
			},
		}
	}

	if credentials.ClientID != "" && credentials.ClientSecret != "" {
		refresher.ClientCredentials = &clientcredentials.Config{
			ClientID:     credentials.ClientID,
			ClientSecret: credentials.ClientSecret,
			TokenURL:     credentials.TokenURL,
			Scopes:       credentials.Scopes,
		}
	} else if credentials.AccessToken != "" {
		refresher.StaticToken = &oauth2.Token{AccessToken: credentials.AccessToken, TokenType: "Bearer"}
	}

	return refresher, nil
}

// Refresh exchanges the refresh token for a new token. The access token is dropped before the
// exchange so the token source always calls the token endpoint, even for a token it would still
// consider valid. If the server omits a new refresh token, the old one is carried over.
func (r *OAuth2Refresher) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if r.Config == nil {
		return nil, ErrNoTokenSource
	}
	if token == nil || token.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	stale := &oauth2.Token{RefreshToken: token.RefreshToken}
	return r.Config.TokenSource(r.context(ctx), stale).Token()
}

// Build obtains a token without a refresh token: a client credentials grant when configured,
// otherwise a copy of the static token.
func (r *OAuth2Refresher) Build(ctx context.Context) (*oauth2.Token, error) {
	switch {
	case r.ClientCredentials != nil:
		return r.ClientCredentials.Token(r.context(ctx))
	case r.StaticToken != nil:
		token := *r.StaticToken
		return &token, nil
	default:
		return nil, ErrNoTokenSource
	}
}

func (r *OAuth2Refresher) context(ctx context.Context) context.Context {
	if r.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, r.HTTPClient)
}
