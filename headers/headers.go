// headers/headers.go
package headers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/deploymenttheory/go-fhir-http-client/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// FHIR media types.
const (
	FHIRJSON = "application/fhir+json"
	FHIRXML  = "application/fhir+xml"
)

// SetAuthorization sets the Authorization header from an OAuth2 token. The token type
// defaults to Bearer; an empty access token leaves the request untouched.
func SetAuthorization(req *http.Request, token *oauth2.Token) {
	if token == nil || token.AccessToken == "" {
		return
	}
	req.Header.Set("Authorization", token.Type()+" "+token.AccessToken)
}

// DefaultFHIRHeaders returns the headers sent on every FHIR request unless the caller
// overrides them.
func DefaultFHIRHeaders(userAgent string) http.Header {
	h := http.Header{}
	h.Set("Accept", FHIRJSON)
	h.Set("Content-Type", FHIRJSON+"; charset=utf-8")
	h.Set("Accept-Charset", "utf-8")
	h.Set("User-Agent", userAgent)
	return h
}

// Merge returns a new header set holding base overlaid with overrides.
// Values from overrides replace, not append to, values in base.
func Merge(base, overrides http.Header) http.Header {
	merged := base.Clone()
	if merged == nil {
		merged = http.Header{}
	}
	for name, values := range overrides {
		merged[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	return merged
}

// Apply copies every header onto the request.
func Apply(req *http.Request, headers http.Header) {
	for name, values := range headers {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
}

// HeadersToString converts a http.Header to a string for logging,
// with each header on a new line for readability. Names are sorted so output is stable.
func HeadersToString(headers http.Header) string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	headerStrings := make([]string, 0, len(names))
	for _, name := range names {
		headerStrings = append(headerStrings, fmt.Sprintf("%s: %s", name, strings.Join(headers[name], ", ")))
	}
	return strings.Join(headerStrings, "\n")
}

// CheckDeprecationHeader checks the response headers for the Deprecation header and logs a warning if present.
func CheckDeprecationHeader(resp *http.Response, log logger.Logger) {
	deprecationHeader := resp.Header.Get("Deprecation")
	if deprecationHeader == "" {
		return
	}

	endpoint := ""
	if resp.Request != nil && resp.Request.URL != nil {
		endpoint = resp.Request.URL.String()
	}
	log.Warn("API endpoint is deprecated",
		zap.String("Date", deprecationHeader),
		zap.String("Endpoint", endpoint),
	)
}
