// httpclient/config.go
// Description: This file contains functions to load and validate configuration values from a file or environment variables.
package httpclient

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/deploymenttheory/go-fhir-http-client/authenticationhandler"
	"github.com/deploymenttheory/go-fhir-http-client/logger"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevelString           = "LogLevelInfo"
	DefaultLogOutputFormatString    = logger.LogOutputHumanReadable
	DefaultLogConsoleSeparator      = "	"
	DefaultHideSensitiveData        = false
	DefaultCustomTimeout            = 10 * time.Second
	DefaultTokenRefreshBufferPeriod = 0
	DefaultFollowRedirects          = false
	DefaultMaxRedirects             = 5

	// EnvPrefix prefixes every configuration key read from the environment, e.g. FHIR_CLIENT_BASE_SERVICE_URL.
	EnvPrefix = "FHIR_CLIENT"
)

var configFileExtensions = []string{".json", ".yaml", ".yml"}

// ClientConfig holds everything needed to build a Client.
type ClientConfig struct {
	// FHIR service
	BaseServiceURL string `mapstructure:"base_service_url" json:"base_service_url"`
	ServiceName    string `mapstructure:"service_name" json:"service_name"`

	// OAuth2
	ClientID     string   `mapstructure:"client_id" json:"client_id"`
	ClientSecret string   `mapstructure:"client_secret" json:"client_secret"`
	TokenURL     string   `mapstructure:"token_url" json:"token_url"`
	AuthURL      string   `mapstructure:"auth_url" json:"auth_url"`
	Scopes       []string `mapstructure:"scopes" json:"scopes"`
	AccessToken  string   `mapstructure:"access_token" json:"access_token"`
	RefreshToken string   `mapstructure:"refresh_token" json:"refresh_token"`

	// Log
	LogLevel            string `mapstructure:"log_level" json:"log_level"`
	LogOutputFormat     string `mapstructure:"log_output_format" json:"log_output_format"` // "json" or "pretty"
	LogConsoleSeparator string `mapstructure:"log_console_separator" json:"log_console_separator"`
	LogExportPath       string `mapstructure:"log_export_path" json:"log_export_path"` // optional file or directory
	HideSensitiveData   bool   `mapstructure:"hide_sensitive_data" json:"hide_sensitive_data"`

	// Misc
	CustomTimeout            time.Duration `mapstructure:"custom_timeout" json:"custom_timeout"`
	TokenRefreshBufferPeriod time.Duration `mapstructure:"token_refresh_buffer_period" json:"token_refresh_buffer_period"`

	// Cookies
	CookieJarEnabled bool `mapstructure:"cookie_jar_enabled" json:"cookie_jar_enabled"`

	// Redirects
	FollowRedirects bool `mapstructure:"follow_redirects" json:"follow_redirects"`
	MaxRedirects    int  `mapstructure:"max_redirects" json:"max_redirects"`

	// Proxy
	ProxyURL      string `mapstructure:"proxy_url" json:"proxy_url"`
	ProxyUsername string `mapstructure:"proxy_username" json:"proxy_username"`
	ProxyPassword string `mapstructure:"proxy_password" json:"proxy_password"`
}

// configKeys lists the keys bound to environment variables.
var configKeys = []string{
	"base_service_url", "service_name",
	"client_id", "client_secret", "token_url", "auth_url", "scopes", "access_token", "refresh_token",
	"log_level", "log_output_format", "log_console_separator", "log_export_path", "hide_sensitive_data",
	"custom_timeout", "token_refresh_buffer_period",
	"cookie_jar_enabled", "follow_redirects", "max_redirects",
	"proxy_url", "proxy_username", "proxy_password",
}

// Credentials returns the OAuth2 part of the configuration.
func (c ClientConfig) Credentials() authenticationhandler.ClientCredentials {
	return authenticationhandler.ClientCredentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		AuthURL:      c.AuthURL,
		Scopes:       c.Scopes,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
	}
}

// NewConfigViper returns a viper instance with every configuration key bound to its
// FHIR_CLIENT_* environment variable. Scopes may be given as a comma separated list.
func NewConfigViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// LoadConfigFromFile reads a .json, .yaml or .yml configuration file. Environment
// variables take precedence over values from the file.
func LoadConfigFromFile(path string) (*ClientConfig, error) {
	v := NewConfigViper()
	if err := ReadConfigFile(v, path); err != nil {
		return nil, err
	}
	return UnmarshalConfig(v)
}

// ReadConfigFile validates path and merges the file into v.
func ReadConfigFile(v *viper.Viper, path string) error {
	cleanPath, err := validateFilePath(path)
	if err != nil {
		return err
	}

	v.SetConfigFile(cleanPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading configuration file %s: %w", cleanPath, err)
	}
	return nil
}

// LoadConfigFromEnv reads the configuration from FHIR_CLIENT_* environment variables.
func LoadConfigFromEnv() (*ClientConfig, error) {
	return UnmarshalConfig(NewConfigViper())
}

// UnmarshalConfig decodes a ClientConfig from v and fills in defaults.
func UnmarshalConfig(v *viper.Viper) (*ClientConfig, error) {
	var config ClientConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	SetDefaultValuesClientConfig(&config)
	return &config, nil
}

func validateFilePath(path string) (string, error) {
	cleanPath := filepath.Clean(path)

	if strings.Contains(filepath.ToSlash(path), "../") {
		return "", fmt.Errorf("invalid path, path traversal patterns detected: %s", path)
	}

	if !slices.Contains(configFileExtensions, strings.ToLower(filepath.Ext(cleanPath))) {
		return "", fmt.Errorf("invalid file extension for configuration file: %s, expected one of %s", path, strings.Join(configFileExtensions, ", "))
	}

	return cleanPath, nil
}

// validateClientConfig checks the configuration, optionally filling in defaults first.
func validateClientConfig(config *ClientConfig, populateDefaults bool) error {
	if populateDefaults {
		SetDefaultValuesClientConfig(config)
	}

	parsed, err := url.Parse(config.BaseServiceURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("base service URL must be an absolute URL: %q", config.BaseServiceURL)
	}

	if !logger.IsValidLogLevel(config.LogLevel) {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	validLogFormats := []string{
		logger.LogOutputJSON,
		logger.LogOutputHumanReadable,
	}
	if !slices.Contains(validLogFormats, config.LogOutputFormat) {
		return fmt.Errorf("invalid log output format: %s", config.LogOutputFormat)
	}

	if config.CustomTimeout < 0 {
		return errors.New("timeout cannot be less than 0 seconds")
	}

	if config.TokenRefreshBufferPeriod < 0 {
		return errors.New("refresh buffer period cannot be less than 0 seconds")
	}

	if config.FollowRedirects && config.MaxRedirects < 1 {
		return errors.New("max redirects cannot be less than 1")
	}

	if err := config.Credentials().Validate(); err != nil {
		return fmt.Errorf("invalid OAuth2 credentials: %w", err)
	}

	return nil
}

// SetDefaultValuesClientConfig fills zero-valued fields with their defaults.
func SetDefaultValuesClientConfig(config *ClientConfig) {
	if config.LogLevel == "" {
		config.LogLevel = DefaultLogLevelString
	}

	if config.LogOutputFormat == "" {
		config.LogOutputFormat = DefaultLogOutputFormatString
	}

	if config.LogConsoleSeparator == "" {
		config.LogConsoleSeparator = DefaultLogConsoleSeparator
	}

	if config.CustomTimeout == 0 {
		config.CustomTimeout = DefaultCustomTimeout
	}

	if config.TokenRefreshBufferPeriod == 0 {
		config.TokenRefreshBufferPeriod = DefaultTokenRefreshBufferPeriod
	}

	if config.MaxRedirects == 0 {
		config.MaxRedirects = DefaultMaxRedirects
	}

	if config.ServiceName == "" {
		if parsed, err := url.Parse(config.BaseServiceURL); err == nil && parsed.Host != "" {
			config.ServiceName = parsed.Host
		}
	}
}
