// httpclient/transport.go
package httpclient

import (
	"fmt"
	"net/http"
)

// Transport sends a single HTTP request. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResponseError is a transport error that still carries the server's response. The executor
// treats it as that response: a 401 triggers the refresh, anything else becomes a Reply.
type ResponseError struct {
	Err      error
	Response *http.Response
}

func (e *ResponseError) Error() string {
	if e.Response != nil {
		return fmt.Sprintf("%v (status %d)", e.Err, e.Response.StatusCode)
	}
	return fmt.Sprint(e.Err)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}
