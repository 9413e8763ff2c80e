// authenticationhandler/validation.go

package authenticationhandler

import (
	"net/url"
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s`)

// IsValidClientID checks that the client ID is non-empty and contains no whitespace.
// Returns true if valid, along with an empty error message; otherwise, returns false with an error message.
func IsValidClientID(clientID string) (bool, string) {
	if clientID == "" {
		return false, "Client ID must not be empty."
	}
	if whitespaceRegex.MatchString(clientID) {
		return false, "Client ID must not contain whitespace."
	}
	return true, ""
}

// IsValidClientSecret checks that the client secret is non-empty.
// Returns true if valid, along with an empty error message; otherwise, returns false with an error message.
func IsValidClientSecret(clientSecret string) (bool, string) {
	if strings.TrimSpace(clientSecret) == "" {
		return false, "Client secret must not be empty."
	}
	return true, ""
}

// IsValidTokenURL checks that the token endpoint is an absolute http(s) URL.
// Returns true if valid, along with an empty error message; otherwise, returns false with an error message.
func IsValidTokenURL(tokenURL string) (bool, string) {
	parsed, err := url.Parse(tokenURL)
	if err != nil || parsed.Host == "" {
		return false, "Token URL must be an absolute URL."
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return false, "Token URL must use the http or https scheme."
	}
	return true, ""
}

// IsValidScope checks that each scope is a non-empty token without whitespace, as required by RFC 6749 section 3.3.
// Returns true if valid, along with an empty error message; otherwise, returns false with an error message.
func IsValidScope(scopes []string) (bool, string) {
	for _, scope := range scopes {
		if scope == "" || whitespaceRegex.MatchString(scope) {
			return false, "Scopes must be non-empty and contain no whitespace: " + scope
		}
	}
	return true, ""
}
