package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "presence",
		Short: "CLI tool for the island presence relay",
		Long: `presence is a CLI tool for the island presence relay.

It queries the HTTP API (health, player count, roster, random avatar) and can
join the relay over WebSocket to watch live events or send a chat message.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Output != "text" && cfg.Output != "json" {
				return errInvalidOutput(cfg.Output)
			}

			// Create HTTP client
			client = NewClient(cfg.ServerURL, nil)
			if cfg.Verbose {
				client = NewClient(cfg.ServerURL, cmd.ErrOrStderr())
			}
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: PRESENCE_SERVER)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json (env: PRESENCE_OUTPUT)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newCountCmd())
	rootCmd.AddCommand(newAvatarCmd())
	rootCmd.AddCommand(newPlayersCmd())
	rootCmd.AddCommand(newListenCmd())
	rootCmd.AddCommand(newSayCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
