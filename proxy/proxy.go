// proxy.go

package proxy

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/deploymenttheory/go-fhir-http-client/logger"
	"go.uber.org/zap"
)

// ConfigureProxy routes the client's traffic through proxyURL. Credentials, when both are set, are
// embedded in the proxy URL so net/http sends Proxy-Authorization on its own.
// An empty proxyURL leaves the client untouched.
func ConfigureProxy(httpClient *http.Client, proxyURL, proxyUsername, proxyPassword string, log logger.Logger) error {
	if proxyURL == "" {
		return nil
	}

	parsedProxyURL, err := url.Parse(proxyURL)
	if err != nil {
		log.Error("Failed to parse proxy URL", zap.Error(err))
		return err
	}
	if parsedProxyURL.Scheme == "" || parsedProxyURL.Host == "" {
		return log.Error("Proxy URL must be absolute", zap.String("ProxyURL", proxyURL))
	}

	if proxyUsername != "" && proxyPassword != "" {
		parsedProxyURL.User = url.UserPassword(proxyUsername, proxyPassword)
	}

	transport, ok := httpClient.Transport.(*http.Transport)
	switch {
	case httpClient.Transport == nil:
		transport = http.DefaultTransport.(*http.Transport).Clone()
	case ok:
		transport = transport.Clone()
	default:
		return errors.New("proxy: client transport is not an *http.Transport")
	}
	transport.Proxy = http.ProxyURL(parsedProxyURL)
	httpClient.Transport = transport

	log.Info("Proxy configured", zap.String("ProxyURL", parsedProxyURL.Redacted()))
	return nil
}
