// headers/redact/redact.go
package redact

import "net/http"

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "REDACTED"

// sensitiveKeys lists the canonical header names and log keys whose values carry credentials.
var sensitiveKeys = map[string]bool{
	"AccessToken":         true,
	"RefreshToken":        true,
	"Authorization":       true,
	"Proxy-Authorization": true,
	"Cookie":              true,
	"Set-Cookie":          true,
}

// RedactSensitiveHeaderData redacts sensitive data based on the hideSensitiveData flag.
func RedactSensitiveHeaderData(hideSensitiveData bool, key, value string) string {
	if hideSensitiveData && (sensitiveKeys[key] || sensitiveKeys[http.CanonicalHeaderKey(key)]) {
		return RedactedValue
	}
	return value
}

// RedactHeaders returns a copy of headers with every sensitive value redacted when
// hideSensitiveData is set. The input is never modified.
func RedactHeaders(hideSensitiveData bool, headers http.Header) http.Header {
	if headers == nil {
		return nil
	}
	redacted := make(http.Header, len(headers))
	for name, values := range headers {
		copied := make([]string, len(values))
		for i, value := range values {
			copied[i] = RedactSensitiveHeaderData(hideSensitiveData, name, value)
		}
		redacted[name] = copied
	}
	return redacted
}
