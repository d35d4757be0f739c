package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdoulgee/skylinee/pkg/client"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	flagServer     string
	flagAPIKey     string
	flagActor      string
	flagSigningKey string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "skylineectl",
	Short: "Operator CLI for the skylinee messaging service",
	Long: `skylineectl talks to a running skylinee server with the same HTTP API
the apps use, plus offline inspection of a pebble database directory.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&flagServer, "server", envOr("SKYLINEE_SERVER", "http://localhost:8080"), "server base URL")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", os.Getenv("SKYLINEE_API_KEY"), "API key")
	rootCmd.PersistentFlags().StringVar(&flagActor, "actor", envOr("SKYLINEE_ACTOR", "agent-cli"), "actor id to act as")
	rootCmd.PersistentFlags().StringVar(&flagSigningKey, "signing-key", os.Getenv("SKYLINEE_SIGNING_KEY"), "signing key (customer sessions only)")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newClient() *client.Client {
	var opts []client.Option
	if flagSigningKey != "" {
		opts = append(opts, client.WithSigningKey(flagSigningKey))
	}
	return client.New(flagServer, flagAPIKey, flagActor, opts...)
}
