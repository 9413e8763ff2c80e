// httpclient/reply.go
package httpclient

import (
	"net/http"

	"github.com/deploymenttheory/go-fhir-http-client/authenticationhandler"
	"github.com/deploymenttheory/go-fhir-http-client/response"
	"github.com/deploymenttheory/go-fhir-http-client/status"
)

// RequestParams carries the optional parts of an Execute call.
type RequestParams struct {
	Headers        http.Header // Headers are sent as given; Authorization is set by the executor.
	Body           []byte      // Body is the request payload, if any.
	BaseServiceURL string      // BaseServiceURL is stripped from the URL to produce RequestRecord.Path.
}

// RequestRecord describes the request as the caller issued it.
type RequestRecord struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Path    string      `json:"path"`
	Headers http.Header `json:"headers,omitempty"`
	Payload string      `json:"payload,omitempty"`
}

// ResponseRecord describes the response that ended the exchange.
type ResponseRecord struct {
	Code    string      `json:"code"`
	Headers http.Header `json:"headers,omitempty"`
	Body    string      `json:"body"`
}

// Reply is the outcome of Execute. Non-2xx responses other than a retried 401 are
// returned as Replies too; use Err to turn them into an error.
type Reply struct {
	Request  RequestRecord                  `json:"request"`
	Response ResponseRecord                 `json:"response"`
	Session  *authenticationhandler.Session `json:"-"`
}

// StatusCode returns the numeric response status, or 0 when the code is not a number.
func (r *Reply) StatusCode() int {
	return status.ParseCode(r.Response.Code)
}

// IsSuccess reports whether the response status is 2xx.
func (r *Reply) IsSuccess() bool {
	return status.IsSuccess(r.StatusCode())
}

// Err returns nil for successful replies and a *response.APIError carrying the server's
// diagnostics otherwise.
func (r *Reply) Err() error {
	if r.IsSuccess() {
		return nil
	}
	return response.ParseErrorResponse(
		r.StatusCode(),
		r.Request.Method,
		r.Request.URL,
		r.Response.Headers.Get("Content-Type"),
		[]byte(r.Response.Body),
	)
}
