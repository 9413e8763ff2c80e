package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/deploymenttheory/go-fhir-http-client/headers/redact"
	"github.com/deploymenttheory/go-fhir-http-client/httpclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	requestData     string
	requestDataFile string
	requestHeaders  []string
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Fetch the server's CapabilityStatement",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(configV, cfgFile)
		if err != nil {
			return err
		}
		reply, err := client.Capabilities(cmd.Context())
		if err != nil {
			return err
		}
		return writeReply(cmd.OutOrStdout(), reply, failOnHTTP)
	},
}

var requestCmd = &cobra.Command{
	Use:   "request <METHOD> <path>",
	Short: "Send a request to a path below the base service URL",
	Long: `Send a request to a path below the base service URL.

Examples:
  fhirctl request GET Patient/123
  fhirctl request POST Patient --data-file patient.json
  fhirctl request PATCH Patient/123 -H "Content-Type: application/json-patch+json" -d '[...]'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := httpclient.ParseAction(args[0])
		if err != nil {
			return err
		}
		body, err := readRequestBody(requestData, requestDataFile)
		if err != nil {
			return err
		}
		extraHeaders, err := parseHeaders(requestHeaders)
		if err != nil {
			return err
		}

		client, err := newClient(configV, cfgFile)
		if err != nil {
			return err
		}
		reply, err := client.Do(cmd.Context(), action, args[1], body, extraHeaders)
		if err != nil {
			return err
		}
		return writeReply(cmd.OutOrStdout(), reply, failOnHTTP)
	},
}

func init() {
	requestCmd.Flags().StringVarP(&requestData, "data", "d", "", "Request body")
	requestCmd.Flags().StringVar(&requestDataFile, "data-file", "", "Read the request body from a file")
	requestCmd.Flags().StringArrayVarP(&requestHeaders, "header", "H", nil, `Extra header as "Name: value", repeatable`)
}

// newClient layers the optional configuration file under env and flags and builds the client.
func newClient(v *viper.Viper, configFile string) (*httpclient.Client, error) {
	if configFile != "" {
		if err := httpclient.ReadConfigFile(v, configFile); err != nil {
			return nil, err
		}
	}
	config, err := httpclient.UnmarshalConfig(v)
	if err != nil {
		return nil, err
	}
	return httpclient.BuildClient(*config, true)
}

func readRequestBody(data, dataFile string) ([]byte, error) {
	if data != "" && dataFile != "" {
		return nil, fmt.Errorf("--data and --data-file are mutually exclusive")
	}
	if dataFile != "" {
		return os.ReadFile(dataFile)
	}
	return []byte(data), nil
}

// parseHeaders turns "Name: value" strings into a header set.
func parseHeaders(raw []string) (http.Header, error) {
	parsed := http.Header{}
	for _, entry := range raw {
		name, value, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", entry)
		}
		parsed.Add(name, strings.TrimSpace(value))
	}
	return parsed, nil
}

// writeReply prints the reply as indented JSON with credentials redacted.
func writeReply(w io.Writer, reply *httpclient.Reply, failOnHTTPError bool) error {
	printable := *reply
	printable.Request.Headers = redact.RedactHeaders(true, reply.Request.Headers)
	printable.Response.Headers = redact.RedactHeaders(true, reply.Response.Headers)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(printable); err != nil {
		return err
	}

	if failOnHTTPError {
		return reply.Err()
	}
	return nil
}
