// httpclient/client_test.go
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deploymenttheory/go-fhir-http-client/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// newTestServers starts a token endpoint issuing token-1, token-2, ... for the client
// credentials grant and a FHIR endpoint that only accepts acceptedToken.
func newTestServers(t *testing.T, acceptedToken string) (tokenServer, fhirServer *httptest.Server, issued *int32) {
	t.Helper()
	issued = new(int32)

	tokenServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		n := atomic.AddInt32(issued, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": fmt.Sprintf("token-%d", n),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(tokenServer.Close)

	fhirServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+acceptedToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/fhir+json")
		switch r.URL.Path {
		case "/r4/metadata":
			_, _ = w.Write([]byte(`{"resourceType":"CapabilityStatement","fhirVersion":"4.0.1"}`))
		case "/r4/Patient":
			body, _ := io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(body)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"resourceType":"OperationOutcome","issue":[{"severity":"error","code":"not-found"}]}`))
		}
	}))
	t.Cleanup(fhirServer.Close)

	return tokenServer, fhirServer, issued
}

func newTestClient(t *testing.T, tokenURL, baseURL string) *Client {
	t.Helper()
	return newTestClientWithLogger(t, tokenURL, baseURL, logger.NewLogger(zap.NewNop(), logger.LogLevelDebug))
}

func newTestClientWithLogger(t *testing.T, tokenURL, baseURL string, log logger.Logger) *Client {
	t.Helper()
	config := ClientConfig{
		BaseServiceURL:    baseURL,
		ClientID:          "fhir-client",
		ClientSecret:      "s3cret",
		TokenURL:          tokenURL,
		Scopes:            []string{"system/*.read"},
		HideSensitiveData: true,
	}
	require.NoError(t, validateClientConfig(&config, true))

	client, err := buildClientWithLogger(config, log)
	require.NoError(t, err)
	return client
}

func TestClient_CapabilitiesBuildsToken(t *testing.T) {
	tokenServer, fhirServer, issued := newTestServers(t, "token-1")
	client := newTestClient(t, tokenServer.URL, fhirServer.URL+"/r4")

	reply, err := client.Capabilities(context.Background())

	require.NoError(t, err)
	assert.True(t, reply.IsSuccess())
	assert.Equal(t, "/metadata", reply.Request.Path)
	assert.Contains(t, reply.Response.Body, "CapabilityStatement")
	assert.Equal(t, int32(1), atomic.LoadInt32(issued))

	// A second call reuses the token.
	_, err = client.Capabilities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(issued))
}

func TestClient_RebuildsTokenAfterUnauthorized(t *testing.T) {
	tokenServer, fhirServer, issued := newTestServers(t, "token-2")
	client := newTestClient(t, tokenServer.URL, fhirServer.URL+"/r4")

	reply, err := client.Get(context.Background(), "metadata", nil)

	require.NoError(t, err)
	assert.Equal(t, "200", reply.Response.Code)
	assert.Equal(t, "token-2", client.Session.Token().AccessToken)
	assert.Equal(t, int32(2), atomic.LoadInt32(issued))
}

func TestClient_PostSendsFHIRHeaders(t *testing.T) {
	tokenServer, fhirServer, _ := newTestServers(t, "token-1")
	client := newTestClient(t, tokenServer.URL, fhirServer.URL+"/r4")
	patient := []byte(`{"resourceType":"Patient","name":[{"family":"Smith"}]}`)

	reply, err := client.Post(context.Background(), "/Patient", patient, nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, reply.StatusCode())
	assert.Equal(t, string(patient), reply.Response.Body)
	assert.Equal(t, "application/fhir+json; charset=utf-8", reply.Request.Headers.Get("Content-Type"))
	assert.Equal(t, "application/fhir+json", reply.Request.Headers.Get("Accept"))
	assert.Contains(t, reply.Request.Headers.Get("User-Agent"), "go-fhir-http-client/")
}

func TestClient_GetOmitsContentTypeAndKeepsErrorReplies(t *testing.T) {
	tokenServer, fhirServer, _ := newTestServers(t, "token-1")
	client := newTestClient(t, tokenServer.URL, fhirServer.URL+"/r4")

	reply, err := client.Get(context.Background(), "Patient/404", http.Header{"Accept": []string{"application/fhir+xml"}})

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, reply.StatusCode())
	assert.Empty(t, reply.Request.Headers.Get("Content-Type"))
	assert.Equal(t, "application/fhir+xml", reply.Request.Headers.Get("Accept"))
	assert.Error(t, reply.Err())
}

func TestClient_DoWarnsOnBodyForBodylessMethod(t *testing.T) {
	tokenServer, fhirServer, _ := newTestServers(t, "token-1")
	core, logs := observer.New(zapcore.DebugLevel)
	client := newTestClientWithLogger(t, tokenServer.URL, fhirServer.URL+"/r4", logger.NewLogger(zap.New(core), logger.LogLevelDebug))

	reply, err := client.Do(context.Background(), ActionDelete, "Patient/1", []byte(`{"reason":"duplicate"}`), nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, reply.StatusCode())
	warnings := logs.FilterMessage("Sending a request body with a method that usually carries none")
	require.Equal(t, 1, warnings.Len())
	assert.Equal(t, zapcore.WarnLevel, warnings.All()[0].Level)

	_, err = client.Post(context.Background(), "Patient", []byte(`{"resourceType":"Patient"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("Sending a request body with a method that usually carries none").Len())
}

func TestClient_ResolveURL(t *testing.T) {
	client := &Client{config: ClientConfig{BaseServiceURL: "https://fhir.example.org/r4/"}}

	assert.Equal(t, "https://fhir.example.org/r4/Patient/1", client.ResolveURL("/Patient/1"))
	assert.Equal(t, "https://fhir.example.org/r4/metadata", client.ResolveURL("metadata"))
	assert.Equal(t, "https://other.example.org/Patient", client.ResolveURL("https://other.example.org/Patient"))
}

func TestClient_ModifyHttpTimeout(t *testing.T) {
	tokenServer, fhirServer, _ := newTestServers(t, "token-1")
	client := newTestClient(t, tokenServer.URL, fhirServer.URL+"/r4")

	client.ModifyHttpTimeout(42 * time.Second)

	assert.Equal(t, 42*time.Second, client.http.Timeout)
	assert.Equal(t, DefaultCustomTimeout, client.Config().CustomTimeout)
}

func TestBuildClient_InvalidConfig(t *testing.T) {
	_, err := BuildClient(ClientConfig{BaseServiceURL: "not a url"}, true)
	assert.Error(t, err)
}

func TestBuildClient_RefreshTokenWithoutRefreshGrant(t *testing.T) {
	_, err := BuildClient(ClientConfig{
		BaseServiceURL: "https://fhir.example.org/r4",
		AccessToken:    "a1",
		RefreshToken:   "r1",
		LogLevel:       "LogLevelError",
	}, true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh token requires a client ID")
}
