// httpclient/executor.go
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-fhir-http-client/authenticationhandler"
	"github.com/deploymenttheory/go-fhir-http-client/cookiejar"
	"github.com/deploymenttheory/go-fhir-http-client/headers"
	"github.com/deploymenttheory/go-fhir-http-client/headers/redact"
	"github.com/deploymenttheory/go-fhir-http-client/logger"
	"github.com/deploymenttheory/go-fhir-http-client/status"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// metadataPlaceholder replaces the body of CapabilityStatement responses in debug logs.
const metadataPlaceholder = "[metadata, too large]"

// TokenGuard keeps a session's token fresh. *authenticationhandler.Guard satisfies it.
type TokenGuard interface {
	EnsureFreshToken(ctx context.Context, session *authenticationhandler.Session, force bool) error
}

// outcome classifies a single send attempt.
type outcome int

const (
	outcomeSuccess          outcome = iota // any response other than 401
	outcomeAuthFailure                     // 401 Unauthorized
	outcomeTransportFailure                // no response at all
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeAuthFailure:
		return "auth_failure"
	default:
		return "transport_failure"
	}
}

// attempt is the result of one send.
type attempt struct {
	outcome  outcome
	response *http.Response
	body     []byte
	err      error
}

// Executor sends authenticated requests to a FHIR server.
type Executor struct {
	Transport         Transport     // Transport performs the HTTP exchange.
	Guard             TokenGuard    // Guard refreshes the session token.
	Logger            logger.Logger // Logger provides structured logging capabilities.
	HideSensitiveData bool          // Redact credentials in logged headers.
}

// NewExecutor creates a new Executor.
func NewExecutor(transport Transport, guard TokenGuard, log logger.Logger, hideSensitiveData bool) *Executor {
	return &Executor{
		Transport:         transport,
		Guard:             guard,
		Logger:            log,
		HideSensitiveData: hideSensitiveData,
	}
}

// Execute sends action to url with the session's access token and returns the server's reply.
//
// The token is checked first and refreshed if expired. When the server answers 401, the token
// is refreshed once with force and the request is sent a second time; the second answer is
// final, whatever it is. Other error statuses are not retried and come back as a normal Reply,
// also when the transport reports them through a *ResponseError.
//
// An error is returned, and no Reply, when:
//   - action is not supported (ErrUnsupportedAction), checked before any network activity,
//   - the token cannot be refreshed (wrapping the refresher's error),
//   - the transport fails without a response; the transport's error value is returned unchanged.
func (e *Executor) Execute(ctx context.Context, action Action, session *authenticationhandler.Session, url string, params RequestParams) (*Reply, error) {
	if !action.IsSupported() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, string(action))
	}

	log := e.Logger.With(
		zap.String(logger.FieldRequestID, uuid.New().String()),
		zap.String(logger.FieldService, session.ServiceName),
	)

	if err := e.Guard.EnsureFreshToken(ctx, session, false); err != nil {
		return nil, err
	}

	result, err := e.send(ctx, log, action, session, url, params)
	if err != nil {
		return nil, err
	}

	if result.outcome == outcomeAuthFailure {
		log.Info("Received 401 Unauthorized, refreshing token and retrying once",
			zap.String("Method", string(action)),
			zap.String("URL", url),
		)
		if err := e.Guard.EnsureFreshToken(ctx, session, true); err != nil {
			return nil, err
		}
		if result, err = e.send(ctx, log, action, session, url, params); err != nil {
			return nil, err
		}
	}

	if result.outcome == outcomeTransportFailure {
		log.Error(fmt.Sprintf("%s - Request: %s failed! No response from server", action, url), zap.Error(result.err))
		return nil, result.err
	}

	headers.CheckDeprecationHeader(result.response, log)

	reply := &Reply{
		Request: RequestRecord{
			Method:  string(action),
			URL:     url,
			Path:    requestPath(url, params.BaseServiceURL),
			Headers: params.Headers,
			Payload: string(params.Body),
		},
		Response: ResponseRecord{
			Code:    strconv.Itoa(result.response.StatusCode),
			Headers: result.response.Header,
			Body:    string(result.body),
		},
		Session: session,
	}

	e.logReply(log, reply)
	return reply, nil
}

// send builds and sends one request and classifies the result. The returned error is reserved
// for failures building the request; transport failures are reported through the attempt.
func (e *Executor) send(ctx context.Context, log logger.Logger, action Action, session *authenticationhandler.Session, url string, params RequestParams) (attempt, error) {
	var body io.Reader
	if len(params.Body) > 0 {
		body = bytes.NewReader(params.Body)
	}

	req, err := http.NewRequestWithContext(ctx, string(action), url, body)
	if err != nil {
		return attempt{}, fmt.Errorf("building %s request for %s: %w", action, url, err)
	}
	headers.Apply(req, params.Headers)
	headers.SetAuthorization(req, session.Token())

	log.Debug("Sending request",
		zap.String("Method", req.Method),
		zap.String("URL", url),
		zap.String("Headers", headers.HeadersToString(redact.RedactHeaders(e.HideSensitiveData, req.Header))),
	)

	resp, err := e.Transport.Do(req)
	result := classify(resp, err)
	log.Debug("Request attempt finished", zap.Stringer("Outcome", result.outcome))
	return result, nil
}

// classify reads the response body and decides the attempt's outcome. A response carried by
// an error counts as a response.
func classify(resp *http.Response, err error) attempt {
	if err != nil {
		var respErr *ResponseError
		if resp == nil && errors.As(err, &respErr) {
			resp = respErr.Response
		}
		if resp == nil {
			return attempt{outcome: outcomeTransportFailure, err: err}
		}
	}

	body, readErr := readBody(resp)
	if readErr != nil && err == nil {
		return attempt{outcome: outcomeTransportFailure, err: readErr}
	}

	result := attempt{outcome: outcomeSuccess, response: resp, body: body, err: err}
	if status.IsUnauthorized(resp.StatusCode) {
		result.outcome = outcomeAuthFailure
	}
	return result
}

func readBody(resp *http.Response) ([]byte, error) {
	if resp.Body == nil {
		return nil, nil
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// requestPath removes every occurrence of the base service URL from url.
func requestPath(url, baseServiceURL string) string {
	if baseServiceURL == "" {
		return url
	}
	return strings.ReplaceAll(url, baseServiceURL, "")
}

func (e *Executor) logReply(log logger.Logger, reply *Reply) {
	body := metadataPlaceholder
	if !strings.HasSuffix(reply.Request.URL, "/metadata") {
		body = strings.ToValidUTF8(reply.Response.Body, "\uFFFD")
	}

	log.Debug(fmt.Sprintf("%s - Request completed", reply.Request.Method),
		zap.String("URL", reply.Request.URL),
		zap.String("Path", reply.Request.Path),
		zap.String("Status", reply.Response.Code),
		zap.String("StatusMessage", status.TranslateStatusCode(reply.StatusCode())),
		zap.String("RequestHeaders", headers.HeadersToString(redact.RedactHeaders(e.HideSensitiveData, reply.Request.Headers))),
		zap.String("Payload", reply.Request.Payload),
		zap.Strings("SetCookies", cookiejar.CookieNames(cookiejar.CookiesFromHeader(reply.Response.Headers))),
		zap.String("Response", body),
	)
}
