// httpclient/client.go
/* The httpclient package provides an OAuth2-authenticated HTTP client for FHIR servers.
Every request goes through the Executor, which keeps the session token fresh and retries
exactly once after a 401 with a force-refreshed token. The Client wires the Executor to a
configured http.Client, logger, token refresher and session, and offers per-method helpers
that resolve paths against the FHIR base URL. */
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/deploymenttheory/go-fhir-http-client/authenticationhandler"
	"github.com/deploymenttheory/go-fhir-http-client/cookiejar"
	"github.com/deploymenttheory/go-fhir-http-client/headers"
	"github.com/deploymenttheory/go-fhir-http-client/logger"
	"github.com/deploymenttheory/go-fhir-http-client/proxy"
	"github.com/deploymenttheory/go-fhir-http-client/redirecthandler"
	"github.com/deploymenttheory/go-fhir-http-client/version"
	"go.uber.org/zap"
)

// Client is a FHIR API client bound to one service.
type Client struct {
	// Private
	config         ClientConfig
	http           *http.Client
	defaultHeaders http.Header

	// Exported
	Logger   logger.Logger
	Session  *authenticationhandler.Session
	Guard    *authenticationhandler.Guard
	Executor *Executor
}

// BuildClient creates a new FHIR client with the provided configuration.
func BuildClient(config ClientConfig, populateDefaultValues bool) (*Client, error) {
	if err := validateClientConfig(&config, populateDefaultValues); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	parsedLogLevel := logger.ParseLogLevelFromString(config.LogLevel)
	log, err := logger.BuildLogger(parsedLogLevel, config.LogOutputFormat, config.LogConsoleSeparator, config.LogExportPath)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	return buildClientWithLogger(config, log)
}

// buildClientWithLogger assembles a Client from a validated configuration.
func buildClientWithLogger(config ClientConfig, log logger.Logger) (*Client, error) {
	log.Info("Initializing new FHIR client", zap.String(logger.FieldService, config.ServiceName))

	httpClient := &http.Client{
		Timeout: config.CustomTimeout,
	}

	if err := redirecthandler.SetupRedirectHandler(httpClient, config.FollowRedirects, config.MaxRedirects, log); err != nil {
		return nil, fmt.Errorf("configuring redirects: %w", err)
	}

	if err := cookiejar.SetupCookieJar(httpClient, config.CookieJarEnabled, log); err != nil {
		return nil, err
	}

	if err := proxy.ConfigureProxy(httpClient, config.ProxyURL, config.ProxyUsername, config.ProxyPassword, log); err != nil {
		return nil, fmt.Errorf("configuring proxy: %w", err)
	}

	credentials := config.Credentials()
	refresher, err := authenticationhandler.NewOAuth2Refresher(credentials, httpClient)
	if err != nil {
		return nil, err
	}

	guard := authenticationhandler.NewGuard(refresher, log, config.TokenRefreshBufferPeriod, config.HideSensitiveData)
	session := authenticationhandler.NewSession(config.ServiceName, config.BaseServiceURL, credentials.InitialToken())

	client := &Client{
		config:         config,
		http:           httpClient,
		defaultHeaders: headers.DefaultFHIRHeaders(version.GetUserAgentHeader()),
		Logger:         log,
		Session:        session,
		Guard:          guard,
		Executor:       NewExecutor(httpClient, guard, log, config.HideSensitiveData),
	}

	log.Debug("New FHIR client initialized",
		zap.String("Base Service URL", config.BaseServiceURL),
		zap.String("Token URL", config.TokenURL),
		zap.Strings("Scopes", config.Scopes),
		zap.Bool("Client Credentials Grant", refresher.ClientCredentials != nil),
		zap.Bool("Refresh Token Provided", config.RefreshToken != ""),
		zap.String("Logging Level", config.LogLevel),
		zap.String("Log Encoding Format", config.LogOutputFormat),
		zap.String("Log Export Path", config.LogExportPath),
		zap.Bool("Hide Sensitive Data In Logs", config.HideSensitiveData),
		zap.Duration("Custom Timeout", config.CustomTimeout),
		zap.Duration("Token Refresh Buffer Period", config.TokenRefreshBufferPeriod),
		zap.Bool("Cookie Jar Enabled", config.CookieJarEnabled),
		zap.Bool("Follow Redirects", config.FollowRedirects),
		zap.Int("Max Redirects", config.MaxRedirects),
		zap.Bool("Proxy Configured", config.ProxyURL != ""),
	)

	return client, nil
}

// Config returns a copy of the configuration the client was built with.
func (c *Client) Config() ClientConfig {
	return c.config
}

// ModifyHttpTimeout changes the timeout of the underlying http.Client.
// It is a setup step: call it before the client sends requests, never while requests are in flight.
func (c *Client) ModifyHttpTimeout(newTimeout time.Duration) {
	c.http.Timeout = newTimeout
}

// ResolveURL joins path onto the base service URL. Absolute URLs are returned unchanged.
func (c *Client) ResolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(c.config.BaseServiceURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Do sends action to path with the default FHIR headers overlaid by extraHeaders.
// Requests without a body carry no Content-Type.
func (c *Client) Do(ctx context.Context, action Action, path string, body []byte, extraHeaders http.Header) (*Reply, error) {
	requestHeaders := headers.Merge(c.defaultHeaders, extraHeaders)
	if len(body) == 0 {
		requestHeaders.Del("Content-Type")
	} else if action.IsSupported() && !action.HasBody() {
		c.Logger.Warn("Sending a request body with a method that usually carries none",
			zap.String("Method", string(action)),
			zap.String("Path", path),
			zap.Int("BodyBytes", len(body)),
		)
	}

	return c.Executor.Execute(ctx, action, c.Session, c.ResolveURL(path), RequestParams{
		Headers:        requestHeaders,
		Body:           body,
		BaseServiceURL: c.config.BaseServiceURL,
	})
}

// Get reads a resource, a history or a search result.
func (c *Client) Get(ctx context.Context, path string, extraHeaders http.Header) (*Reply, error) {
	return c.Do(ctx, ActionGet, path, nil, extraHeaders)
}

// Post creates a resource or runs an operation.
func (c *Client) Post(ctx context.Context, path string, body []byte, extraHeaders http.Header) (*Reply, error) {
	return c.Do(ctx, ActionPost, path, body, extraHeaders)
}

// Put updates a resource.
func (c *Client) Put(ctx context.Context, path string, body []byte, extraHeaders http.Header) (*Reply, error) {
	return c.Do(ctx, ActionPut, path, body, extraHeaders)
}

// Patch applies a patch document; callers set the patch media type in extraHeaders.
func (c *Client) Patch(ctx context.Context, path string, body []byte, extraHeaders http.Header) (*Reply, error) {
	return c.Do(ctx, ActionPatch, path, body, extraHeaders)
}

// Delete removes a resource.
func (c *Client) Delete(ctx context.Context, path string, extraHeaders http.Header) (*Reply, error) {
	return c.Do(ctx, ActionDelete, path, nil, extraHeaders)
}

// Head checks a resource without transferring it.
func (c *Client) Head(ctx context.Context, path string, extraHeaders http.Header) (*Reply, error) {
	return c.Do(ctx, ActionHead, path, nil, extraHeaders)
}

// Capabilities fetches the server's CapabilityStatement.
func (c *Client) Capabilities(ctx context.Context) (*Reply, error) {
	return c.Get(ctx, "metadata", nil)
}
