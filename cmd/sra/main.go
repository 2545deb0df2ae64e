// Package main provides the sra command-line client for the SRA recommendation service.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sra-rio/sra-web/internal/apiclient"
	"github.com/sra-rio/sra-web/internal/config"
	"github.com/sra-rio/sra-web/internal/logging"
	"github.com/sra-rio/sra-web/internal/observability"
	"github.com/sra-rio/sra-web/internal/profile"
)

var rootCmd = &cobra.Command{
	Use:   "sra",
	Short: "SRA academic recommendation client",
	Long: "sra talks to the SRA recommendation backend: log in with your matrícula, fill your " +
		"preference profile and get ranked professor recommendations for a subject. " +
		"`sra serve` runs the same flow as a web client.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadAppConfig,
}

var (
	configPath      string
	apiURLFlag      string
	sessionFileFlag string
	logLevelFlag    string
)

// appConfig is resolved before every command runs.
var appConfig config.Config

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON config file")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "Recommendation backend base URL (default $SRA_API_URL or "+config.DefaultAPIURL+")")
	rootCmd.PersistentFlags().StringVar(&sessionFileFlag, "session-file", "", "Session file (default $SRA_SESSION_FILE or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error, disabled")
}

// loadAppConfig layers flags over the config file over the environment.
func loadAppConfig(cmd *cobra.Command, _ []string) error {
	env := config.FromEnv()
	cfg := env
	if configPath != "" {
		fileCfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = fileCfg.MergeWithDefaults(env)
	}

	flags := cmd.Root().PersistentFlags()
	if flags.Changed("api-url") {
		cfg.APIURL = apiURLFlag
	}
	if flags.Changed("session-file") {
		cfg.SessionFile = sessionFileFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevelFlag
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	appConfig = cfg
	return nil
}

// describeError turns a command error into the message shown to the student.
func describeError(err error) string {
	var (
		apiErr       *apiclient.APIError
		transportErr *apiclient.TransportError
		contractErr  *apiclient.ContractError
		fieldErr     *profile.FieldError
	)
	switch {
	case errors.As(err, &fieldErr):
		return fmt.Sprintf("Campo %s: %s.", fieldErr.Label, fieldErr.Message)
	case errors.As(err, &apiErr), errors.As(err, &transportErr), errors.As(err, &contractErr),
		errors.Is(err, apiclient.ErrSubjectRequired):
		return apiclient.UserMessage(err)
	default:
		return err.Error()
	}
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		observability.NewPrinter(os.Stderr).PrintError("Erro: " + describeError(err))
		os.Exit(1)
	}
}
