package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newListenCmd() *cobra.Command {
	var (
		username string
		emoji    string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Join the island and print relay events",
		Long: `Connect to the relay over WebSocket, log in, and print every event received.

Events include:
  - existingPlayers: Roster snapshot sent once after login
  - newPlayer: Another player logged in
  - playerMoved: Another player moved
  - newChatMessage: Chat from anyone, including yourself
  - directMessage: A private message addressed to you
  - giftReceived / giftConfirmed: Gift offers and acceptances
  - playerDisconnected: A player left or idled out

Press Ctrl+C to disconnect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rc, err := joinRelay(ctx, username, emoji)
			if err != nil {
				return err
			}
			defer rc.close()

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			if cfg.Output != "json" {
				out.PrintMessage("Connected as " + username)
			}

			for received := 0; limit <= 0 || received < limit; received++ {
				evt, err := rc.next()
				if err != nil {
					// Interrupt closes the socket under the read
					if ctx.Err() != nil {
						break
					}
					return err
				}
				out.PrintEvent(evt)
			}

			if cfg.Output != "json" {
				out.PrintMessage("Disconnected")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Display name to log in with")
	cmd.Flags().StringVar(&emoji, "emoji", "", "Avatar emoji (default: random from the server)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Exit after this many events (0 = until interrupted)")

	return cmd
}
