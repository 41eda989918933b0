package cli

import (
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HealthResult

			if err := client.Get(cmd.Context(), "/api/v1/health", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show how many players are online",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result CountResult

			if err := client.Get(cmd.Context(), "/api/players/count", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newAvatarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "avatar",
		Short: "Draw a random avatar emoji",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result CharacterResult

			if err := client.Get(cmd.Context(), "/api/random-character", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}
