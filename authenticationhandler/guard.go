// authenticationhandler/guard.go
/* The authenticationhandler package keeps the OAuth2 token held by a Session usable.
The Guard decides when a token must be replaced and delegates the actual token
exchange to a TokenRefresher, by default one backed by golang.org/x/oauth2. */
package authenticationhandler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deploymenttheory/go-fhir-http-client/headers/redact"
	"github.com/deploymenttheory/go-fhir-http-client/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	// ErrNoRefresher is returned when a token must be replaced but the Guard has no TokenRefresher.
	ErrNoRefresher = errors.New("no token refresher configured")
	// ErrEmptyToken is returned when a TokenRefresher reports success without an access token.
	ErrEmptyToken = errors.New("token refresher returned no access token")
)

// TokenRefresher is the OAuth2 collaborator. Refresh exchanges the refresh token of the
// given token for a new token; Build creates a token from already-known parameters when
// no refresh token exists (client credentials, a pre-issued token).
type TokenRefresher interface {
	Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
	Build(ctx context.Context) (*oauth2.Token, error)
}

// Guard ensures a Session holds a fresh token before a request is sent.
type Guard struct {
	Refresher                TokenRefresher // Refresher performs the token exchange.
	Logger                   logger.Logger  // Logger provides structured logging capabilities.
	TokenRefreshBufferPeriod time.Duration  // A token expiring within this period counts as expired.
	HideSensitiveData        bool           // Redact access tokens in log entries.

	now func() time.Time
}

// NewGuard creates a new Guard.
func NewGuard(refresher TokenRefresher, log logger.Logger, tokenRefreshBufferPeriod time.Duration, hideSensitiveData bool) *Guard {
	return &Guard{
		Refresher:                refresher,
		Logger:                   log,
		TokenRefreshBufferPeriod: tokenRefreshBufferPeriod,
		HideSensitiveData:        hideSensitiveData,
		now:                      time.Now,
	}
}

// EnsureFreshToken replaces the session token when needed.
//
// With a refresh token present, nothing happens unless force is set or the token is expired
// (a token seeded with only a refresh token counts as expired); otherwise the token is
// exchanged through Refresher.Refresh. Without a refresh token, a token
// is built from known parameters through Refresher.Build, again only when the session has no
// usable token or force is set. Repeated calls on a valid token never reach the refresher.
func (g *Guard) EnsureFreshToken(ctx context.Context, session *Session, force bool) error {
	current := session.Token()

	if current != nil && current.RefreshToken != "" {
		if !force && current.AccessToken != "" && !g.IsExpired(current) {
			return nil
		}

		g.Logger.Debug("OAuth2 token refresh invoked",
			zap.Bool("Forced", force),
			zap.Time("Expiry", current.Expiry),
			zap.String(logger.FieldService, session.ServiceName),
		)
		return g.replace(session, "refresh", func() (*oauth2.Token, error) {
			if g.Refresher == nil {
				return nil, ErrNoRefresher
			}
			return g.Refresher.Refresh(ctx, current)
		})
	}

	if current != nil && current.AccessToken != "" && !force && !g.IsExpired(current) {
		return nil
	}

	g.Logger.Debug("No refresh token available, building token from known parameters",
		zap.Bool("Forced", force),
		zap.String(logger.FieldService, session.ServiceName),
	)
	return g.replace(session, "build", func() (*oauth2.Token, error) {
		if g.Refresher == nil {
			return nil, ErrNoRefresher
		}
		return g.Refresher.Build(ctx)
	})
}

// IsExpired reports whether the token expires within the buffer period. A token without an
// expiry never expires.
func (g *Guard) IsExpired(token *oauth2.Token) bool {
	if token.Expiry.IsZero() {
		return false
	}
	return !g.clock().Add(g.TokenRefreshBufferPeriod).Before(token.Expiry)
}

// replace obtains a token through obtain and swaps it into the session.
func (g *Guard) replace(session *Session, operation string, obtain func() (*oauth2.Token, error)) error {
	token, err := obtain()
	if err == nil && (token == nil || token.AccessToken == "") {
		err = ErrEmptyToken
	}
	if err != nil {
		g.Logger.Error("Failed to obtain OAuth2 token",
			zap.String("Operation", operation),
			zap.String(logger.FieldService, session.ServiceName),
			zap.Error(err),
		)
		return fmt.Errorf("oauth2 token %s for %q: %w", operation, session.ServiceName, err)
	}

	session.SetToken(token)

	g.Logger.Info("OAuth2 token obtained successfully",
		zap.String("Operation", operation),
		zap.String("AccessToken", redact.RedactSensitiveHeaderData(g.HideSensitiveData, "AccessToken", token.AccessToken)),
		zap.Time("ExpirationTime", token.Expiry),
		zap.Bool("HasRefreshToken", token.RefreshToken != ""),
		zap.String(logger.FieldService, session.ServiceName),
	)
	return nil
}

func (g *Guard) clock() time.Time {
	if g.now == nil {
		return time.Now()
	}
	return g.now()
}
