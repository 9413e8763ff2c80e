package main

import (
	"log"
	"os"

	"github.com/deploymenttheory/go-fhir-http-client/httpclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	failOnHTTP bool
	configV    = httpclient.NewConfigViper()
)

var rootCmd = &cobra.Command{
	Use:   "fhirctl",
	Short: "FHIR API client",
	Long: `Send OAuth2-authenticated requests to a FHIR server.

Settings are read from the configuration file given with --config, from
FHIR_CLIENT_* environment variables and from flags, flags taking precedence.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (.json, .yaml or .yml)")
	rootCmd.PersistentFlags().String("base-url", "", "FHIR base service URL")
	rootCmd.PersistentFlags().String("log-level", "", "Log level, e.g. LogLevelDebug")
	rootCmd.PersistentFlags().String("log-format", "", "Log output format: json or pretty")
	rootCmd.PersistentFlags().BoolVar(&failOnHTTP, "fail", false, "Exit non-zero when the server answers with a non-2xx status")

	bindFlag(configV, "base_service_url", "base-url")
	bindFlag(configV, "log_level", "log-level")
	bindFlag(configV, "log_output_format", "log-format")

	rootCmd.AddCommand(metadataCmd, requestCmd)
}

func bindFlag(v *viper.Viper, key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		log.Printf("Failed to bind %s flag: %v", flag, err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
