// cookiejar/cookiejar.go

/* The cookiejar package gives the FHIR client an optional cookie jar. Some FHIR deployments sit
behind load balancers that pin a client to a backend with a cookie. */

package cookiejar

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"github.com/deploymenttheory/go-fhir-http-client/logger"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// SetupCookieJar initializes the HTTP client with a cookie jar if enabled in the configuration.
// The jar uses the public suffix list so cookies cannot be scoped to e.g. ".org".
func SetupCookieJar(client *http.Client, enableCookieJar bool, log logger.Logger) error {
	if !enableCookieJar {
		return nil
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		log.Error("Failed to create cookie jar", zap.Error(err))
		return fmt.Errorf("setupCookieJar failed: %w", err)
	}
	client.Jar = jar
	log.Debug("Cookie jar enabled")
	return nil
}

// CookiesFromHeader parses the Set-Cookie headers of a response header set.
func CookiesFromHeader(header http.Header) []*http.Cookie {
	return (&http.Response{Header: header}).Cookies()
}

// CookieNames lists the cookie names for logging.
func CookieNames(cookies []*http.Cookie) []string {
	names := make([]string, 0, len(cookies))
	for _, cookie := range cookies {
		names = append(names, cookie.Name)
	}
	return names
}
