package main

import (
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	agentURL   string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "loginagent",
	Short: "Local sign-in agent",
	Long: `loginagent signs the user in with the configured identity provider, exchanges the
provider credential for first-party tokens and keeps the session for other tools.

Environment Variables:
  PORT, BASE_URL        Where the agent listens and is reachable
  IDP_ISSUER            Identity provider issuer URL
  IDP_CLIENT_ID         Client id registered with the provider
  API_BASE_URL          First-party backend exchanging credentials for tokens
  TOKEN_DB_PATH         SQLite file for tokens ("memory" keeps them in memory)
  TOKEN_SEAL_KEY        Secret sealing tokens at rest
  LOG_LEVEL             zerolog level (default: info)`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(config.New())
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&agentURL, "agent-url", "", "Running agent URL (default: BASE_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
}

// getAgentURL returns the agent URL from flag or configuration.
func getAgentURL(c config.Config) string {
	if agentURL != "" {
		return strings.TrimRight(agentURL, "/")
	}
	return strings.TrimRight(c.GetBaseURL(), "/")
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
