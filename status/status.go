// status/status.go
// This package classifies HTTP status codes returned by a FHIR server.
package status

import (
	"fmt"
	"net/http"
	"strconv"
)

// IsUnauthorized reports whether the status code means the presented access token was rejected.
// Only 401 qualifies; 403 means the token was accepted but lacks scope, and refreshing does not help.
func IsUnauthorized(statusCode int) bool {
	return statusCode == http.StatusUnauthorized
}

// IsSuccess reports whether the status code is in the 2xx range.
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// ParseCode converts a status code recorded as a string back to an int.
// It returns 0 when code is not a number.
func ParseCode(code string) int {
	statusCode, err := strconv.Atoi(code)
	if err != nil {
		return 0
	}
	return statusCode
}

// TranslateStatusCode provides a human-readable message for HTTP status codes,
// worded for the interactions a FHIR server supports.
func TranslateStatusCode(statusCode int) string {
	messages := map[int]string{
		http.StatusOK:                   "Request successful.",
		http.StatusCreated:              "Resource created.",
		http.StatusNoContent:            "Request successful. No content returned.",
		http.StatusNotModified:          "Resource not modified since the supplied version.",
		http.StatusBadRequest:           "Bad request. The resource could not be parsed or failed basic FHIR validation.",
		http.StatusUnauthorized:         "Authorization failed. The access token was missing, expired or rejected.",
		http.StatusForbidden:            "Forbidden. The access token lacks the scope required for this interaction.",
		http.StatusNotFound:             "Resource type or instance not found.",
		http.StatusMethodNotAllowed:     "Interaction not supported for this resource type.",
		http.StatusConflict:             "Version conflict. The resource was updated by another client.",
		http.StatusGone:                 "Resource deleted.",
		http.StatusPreconditionFailed:   "Precondition failed. The If-Match version did not match.",
		http.StatusUnsupportedMediaType: "Unsupported media type. Use application/fhir+json or application/fhir+xml.",
		http.StatusUnprocessableEntity:  "Unprocessable entity. The resource violated a FHIR profile or business rule.",
		http.StatusTooManyRequests:      "Too many requests.",
		http.StatusInternalServerError:  "Internal server error.",
		http.StatusNotImplemented:       "Interaction not implemented by this server.",
		http.StatusBadGateway:           "Bad gateway.",
		http.StatusServiceUnavailable:   "Service unavailable.",
		http.StatusGatewayTimeout:       "Gateway timeout.",
	}

	if message, exists := messages[statusCode]; exists {
		return message
	}
	return fmt.Sprintf("Unknown status code: %d", statusCode)
}
