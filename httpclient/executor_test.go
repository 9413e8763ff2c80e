// httpclient/executor_test.go
package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/deploymenttheory/go-fhir-http-client/authenticationhandler"
	"github.com/deploymenttheory/go-fhir-http-client/logger"
	"github.com/deploymenttheory/go-fhir-http-client/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/oauth2"
)

const testBaseURL = "https://fhir.example.org/r4"

// mockTransport is a testify mock for the Transport interface.
type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

// mockRefresher is a testify mock for authenticationhandler.TokenRefresher.
type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	args := m.Called(ctx, token)
	tok, _ := args.Get(0).(*oauth2.Token)
	return tok, args.Error(1)
}

func (m *mockRefresher) Build(ctx context.Context) (*oauth2.Token, error) {
	args := m.Called(ctx)
	tok, _ := args.Get(0).(*oauth2.Token)
	return tok, args.Error(1)
}

type executorFixture struct {
	executor  *Executor
	transport *mockTransport
	refresher *mockRefresher
	session   *authenticationhandler.Session
	logs      *observer.ObservedLogs
}

// newExecutorFixture returns an executor whose session holds a valid, refreshable token "a1".
func newExecutorFixture() *executorFixture {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewLogger(zap.New(core), logger.LogLevelDebug)
	transport := new(mockTransport)
	refresher := new(mockRefresher)
	guard := authenticationhandler.NewGuard(refresher, log, 0, true)
	session := authenticationhandler.NewSession("fhir", testBaseURL, &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"})

	return &executorFixture{
		executor:  NewExecutor(transport, guard, log, true),
		transport: transport,
		refresher: refresher,
		session:   session,
		logs:      logs,
	}
}

func newResponse(code int, contentType, body string) *http.Response {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: code,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func bearer(token string) interface{} {
	return mock.MatchedBy(func(req *http.Request) bool {
		return req.Header.Get("Authorization") == "Bearer "+token
	})
}

func TestExecute_UnsupportedAction(t *testing.T) {
	f := newExecutorFixture()

	reply, err := f.executor.Execute(context.Background(), Action("TRACE"), f.session, testBaseURL+"/Patient", RequestParams{})

	assert.Nil(t, reply)
	assert.ErrorIs(t, err, ErrUnsupportedAction)
	f.transport.AssertNotCalled(t, "Do", mock.Anything)
	f.refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestExecute_ValidTokenIsNotRefreshed(t *testing.T) {
	f := newExecutorFixture()
	f.transport.On("Do", bearer("a1")).Return(newResponse(http.StatusOK, "application/fhir+json", `{"resourceType":"Patient","id":"1"}`), nil).Once()

	reply, err := f.executor.Execute(context.Background(), ActionGet, f.session, testBaseURL+"/Patient/1", RequestParams{BaseServiceURL: testBaseURL})

	require.NoError(t, err)
	assert.Equal(t, "200", reply.Response.Code)
	assert.Equal(t, `{"resourceType":"Patient","id":"1"}`, reply.Response.Body)
	assert.Same(t, f.session, reply.Session)
	f.transport.AssertExpectations(t)
	f.refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
	f.refresher.AssertNotCalled(t, "Build", mock.Anything)
}

func TestExecute_RetriesOnceAfterUnauthorized(t *testing.T) {
	f := newExecutorFixture()
	f.refresher.On("Refresh", mock.Anything, mock.Anything).Return(&oauth2.Token{AccessToken: "a2", RefreshToken: "r1"}, nil).Once()
	f.transport.On("Do", bearer("a1")).Return(newResponse(http.StatusUnauthorized, "", ""), nil).Once()
	f.transport.On("Do", bearer("a2")).Return(newResponse(http.StatusOK, "application/fhir+json", `{"resourceType":"Bundle"}`), nil).Once()

	reply, err := f.executor.Execute(context.Background(), ActionGet, f.session, testBaseURL+"/Patient", RequestParams{})

	require.NoError(t, err)
	assert.Equal(t, "200", reply.Response.Code)
	assert.Equal(t, `{"resourceType":"Bundle"}`, reply.Response.Body)
	assert.Equal(t, "a2", f.session.Token().AccessToken)
	f.refresher.AssertNumberOfCalls(t, "Refresh", 1)
	f.transport.AssertNumberOfCalls(t, "Do", 2)
}

func TestExecute_SecondUnauthorizedIsReturned(t *testing.T) {
	f := newExecutorFixture()
	f.refresher.On("Refresh", mock.Anything, mock.Anything).Return(&oauth2.Token{AccessToken: "a2", RefreshToken: "r1"}, nil).Once()
	f.transport.On("Do", bearer("a1")).Return(newResponse(http.StatusUnauthorized, "text/plain", "expired"), nil).Once()
	f.transport.On("Do", bearer("a2")).Return(newResponse(http.StatusUnauthorized, "text/plain", "still unauthorized"), nil).Once()

	reply, err := f.executor.Execute(context.Background(), ActionGet, f.session, testBaseURL+"/Patient", RequestParams{})

	require.NoError(t, err)
	assert.Equal(t, "401", reply.Response.Code)
	assert.Equal(t, "still unauthorized", reply.Response.Body)
	f.transport.AssertNumberOfCalls(t, "Do", 2)
	f.refresher.AssertNumberOfCalls(t, "Refresh", 1)
}

func TestExecute_TransportErrorWithoutResponse(t *testing.T) {
	f := newExecutorFixture()
	transportErr := errors.New("dial tcp: connection refused")
	f.transport.On("Do", mock.Anything).Return(nil, transportErr).Once()

	reply, err := f.executor.Execute(context.Background(), ActionGet, f.session, testBaseURL+"/Patient", RequestParams{})

	assert.Nil(t, reply)
	assert.True(t, err == transportErr, "the transport error must be returned unchanged")
	f.transport.AssertNumberOfCalls(t, "Do", 1)
	f.refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestExecute_TransportErrorOnRetry(t *testing.T) {
	f := newExecutorFixture()
	transportErr := errors.New("connection reset by peer")
	f.refresher.On("Refresh", mock.Anything, mock.Anything).Return(&oauth2.Token{AccessToken: "a2", RefreshToken: "r1"}, nil).Once()
	f.transport.On("Do", bearer("a1")).Return(newResponse(http.StatusUnauthorized, "", ""), nil).Once()
	f.transport.On("Do", bearer("a2")).Return(nil, transportErr).Once()

	reply, err := f.executor.Execute(context.Background(), ActionGet, f.session, testBaseURL+"/Patient", RequestParams{})

	assert.Nil(t, reply)
	assert.True(t, err == transportErr)
}

func TestExecute_ErrorCarryingResponse(t *testing.T) {
	f := newExecutorFixture()
	carried := &ResponseError{
		Err:      errors.New("server error"),
		Response: newResponse(http.StatusInternalServerError, "application/json", `{"message":"boom"}`),
	}
	f.transport.On("Do", mock.Anything).Return(nil, carried).Once()

	reply, err := f.executor.Execute(context.Background(), ActionPost, f.session, testBaseURL+"/Patient", RequestParams{Body: []byte(`{}`)})

	require.NoError(t, err)
	assert.Equal(t, "500", reply.Response.Code)
	assert.False(t, reply.IsSuccess())
	f.transport.AssertNumberOfCalls(t, "Do", 1)
	f.refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestExecute_ErrorCarryingUnauthorizedIsRetried(t *testing.T) {
	f := newExecutorFixture()
	f.refresher.On("Refresh", mock.Anything, mock.Anything).Return(&oauth2.Token{AccessToken: "a2", RefreshToken: "r1"}, nil).Once()
	f.transport.On("Do", bearer("a1")).Return(nil, &ResponseError{
		Err:      errors.New("unauthorized"),
		Response: newResponse(http.StatusUnauthorized, "", ""),
	}).Once()
	f.transport.On("Do", bearer("a2")).Return(newResponse(http.StatusOK, "", "ok"), nil).Once()

	reply, err := f.executor.Execute(context.Background(), ActionGet, f.session, testBaseURL+"/Patient", RequestParams{})

	require.NoError(t, err)
	assert.Equal(t, "200", reply.Response.Code)
}

func TestExecute_ForcedRefreshFailure(t *testing.T) {
	f := newExecutorFixture()
	refreshErr := errors.New("invalid_grant")
	f.refresher.On("Refresh", mock.Anything, mock.Anything).Return(nil, refreshErr).Once()
	f.transport.On("Do", mock.Anything).Return(newResponse(http.StatusUnauthorized, "", ""), nil).Once()

	reply, err := f.executor.Execute(context.Background(), ActionGet, f.session, testBaseURL+"/Patient", RequestParams{})

	assert.Nil(t, reply)
	assert.ErrorIs(t, err, refreshErr)
	f.transport.AssertNumberOfCalls(t, "Do", 1)
}

func TestExecute_BodyIsResentOnRetry(t *testing.T) {
	f := newExecutorFixture()
	payload := `{"resourceType":"Observation","status":"final"}`
	var bodies []string
	captureBody := func(args mock.Arguments) {
		data, _ := io.ReadAll(args.Get(0).(*http.Request).Body)
		bodies = append(bodies, string(data))
	}
	f.refresher.On("Refresh", mock.Anything, mock.Anything).Return(&oauth2.Token{AccessToken: "a2", RefreshToken: "r1"}, nil).Once()
	f.transport.On("Do", bearer("a1")).Run(captureBody).Return(newResponse(http.StatusUnauthorized, "", ""), nil).Once()
	f.transport.On("Do", bearer("a2")).Run(captureBody).Return(newResponse(http.StatusCreated, "", ""), nil).Once()

	reply, err := f.executor.Execute(context.Background(), ActionPost, f.session, testBaseURL+"/Observation", RequestParams{Body: []byte(payload)})

	require.NoError(t, err)
	assert.Equal(t, "201", reply.Response.Code)
	assert.Equal(t, []string{payload, payload}, bodies)
	assert.Equal(t, payload, reply.Request.Payload)
}

func TestExecute_RequestRecord(t *testing.T) {
	f := newExecutorFixture()
	f.transport.On("Do", mock.Anything).Return(newResponse(http.StatusOK, "", ""), nil)
	requestHeaders := http.Header{"Accept": []string{"application/fhir+json"}}

	reply, err := f.executor.Execute(context.Background(), ActionGet, f.session, testBaseURL+"/Patient?name=smith", RequestParams{
		Headers:        requestHeaders,
		BaseServiceURL: testBaseURL,
	})

	require.NoError(t, err)
	assert.Equal(t, RequestRecord{
		Method:  "GET",
		URL:     testBaseURL + "/Patient?name=smith",
		Path:    "/Patient?name=smith",
		Headers: requestHeaders,
	}, reply.Request)
	assert.Empty(t, reply.Request.Headers.Get("Authorization"))
}

func TestRequestPath(t *testing.T) {
	tests := []struct {
		name string
		url  string
		base string
		want string
	}{
		{"base removed", testBaseURL + "/Patient/1", testBaseURL, "/Patient/1"},
		{"no base", testBaseURL + "/Patient/1", "", testBaseURL + "/Patient/1"},
		{"base not present", "https://other.example.org/Patient/1", testBaseURL, "https://other.example.org/Patient/1"},
		{"every occurrence removed", "https://a.org/x?next=https://a.org/y", "https://a.org", "/x?next=/y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, requestPath(tt.url, tt.base))
		})
	}
}

func TestExecute_DebugLogBody(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		body         string
		expectedBody string
	}{
		{"metadata body omitted", testBaseURL + "/metadata", `{"resourceType":"CapabilityStatement"}`, "[metadata, too large]"},
		{"resource body logged", testBaseURL + "/Patient/1", `{"resourceType":"Patient"}`, `{"resourceType":"Patient"}`},
		{"invalid UTF-8 replaced", testBaseURL + "/Binary/1", "ok\xff", "ok\uFFFD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExecutorFixture()
			f.transport.On("Do", mock.Anything).Return(newResponse(http.StatusOK, "", tt.body), nil).Once()

			reply, err := f.executor.Execute(context.Background(), ActionGet, f.session, tt.url, RequestParams{})
			require.NoError(t, err)
			assert.Equal(t, tt.body, reply.Response.Body)

			entries := f.logs.FilterMessage("GET - Request completed").All()
			require.Len(t, entries, 1)
			assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
			assert.Equal(t, tt.expectedBody, entries[0].ContextMap()["Response"])
			assert.NotEmpty(t, entries[0].ContextMap()[logger.FieldRequestID])
		})
	}
}

func TestExecute_RedactsAuthorizationInLogs(t *testing.T) {
	f := newExecutorFixture()
	f.transport.On("Do", mock.Anything).Return(newResponse(http.StatusOK, "", ""), nil).Once()

	_, err := f.executor.Execute(context.Background(), ActionGet, f.session, testBaseURL+"/Patient", RequestParams{})
	require.NoError(t, err)

	entries := f.logs.FilterMessage("Sending request").All()
	require.Len(t, entries, 1)
	logged := entries[0].ContextMap()["Headers"].(string)
	assert.Contains(t, logged, "Authorization: REDACTED")
	assert.NotContains(t, logged, "a1")
}

func TestReply_Err(t *testing.T) {
	f := newExecutorFixture()
	f.transport.On("Do", mock.Anything).Return(newResponse(http.StatusNotFound, "application/fhir+json",
		`{"resourceType":"OperationOutcome","issue":[{"severity":"error","code":"not-found","diagnostics":"Patient/9 not found"}]}`), nil).Once()

	reply, err := f.executor.Execute(context.Background(), ActionGet, f.session, testBaseURL+"/Patient/9", RequestParams{})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, reply.StatusCode())
	var apiErr *response.APIError
	require.ErrorAs(t, reply.Err(), &apiErr)
	assert.Equal(t, "Patient/9 not found", apiErr.Message)

	ok := &Reply{Response: ResponseRecord{Code: "204"}}
	assert.NoError(t, ok.Err())
}
