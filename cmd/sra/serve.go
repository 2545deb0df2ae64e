package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sra-rio/sra-web/internal/config"
	"github.com/sra-rio/sra-web/internal/server"
	"github.com/sra-rio/sra-web/internal/server/ratelimit"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web client",
	Long: "Start an HTTP server with the login, profile and recommendations pages. " +
		"SESSION_SECRET is required; set DATABASE_URL to keep sessions in PostgreSQL.",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", config.DefaultPort, "Port to listen on (default $PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	port := appConfig.Port
	if cmd.Flags().Changed("port") || port == 0 {
		port = servePort
	}

	sessionCfg, err := config.NewSessionConfig()
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Port:           port,
		APIURL:         appConfig.APIURL,
		RequestTimeout: appConfig.RequestTimeout(),
		DatabaseURL:    appConfig.DatabaseURL,
		Session:        sessionCfg,
		RateLimit:      ratelimit.LoadConfig(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
