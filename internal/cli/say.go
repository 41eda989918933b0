package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/islandrelay/internal/protocol"
)

func newSayCmd() *cobra.Command {
	var (
		username string
		emoji    string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "say <message>",
		Short: "Join the island, send one chat message and leave",
		Long: `Log in, broadcast a chat message, wait for the relay to echo it back, then
disconnect. The echo confirms every connected player has been sent the message.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			rc, err := joinRelay(ctx, username, emoji)
			if err != nil {
				return err
			}
			defer rc.close()

			if err := rc.send(protocol.EventChat, map[string]string{"message": message}); err != nil {
				return err
			}

			for {
				evt, err := rc.next()
				if err != nil {
					if ctx.Err() != nil {
						return fmt.Errorf("no echo within %s", timeout)
					}
					return err
				}
				if evt.Event != protocol.EventNewChatMessage {
					continue
				}

				var chat protocol.ChatMessage
				if err := json.Unmarshal(evt.Data, &chat); err != nil {
					return fmt.Errorf("decoding chat echo: %w", err)
				}
				if chat.PlayerID != rc.id {
					continue
				}

				out := NewOutput(cfg.Output, cmd.OutOrStdout())
				if cfg.Output == "json" {
					out.PrintEvent(evt)
				} else {
					out.PrintMessage(fmt.Sprintf("%s: %s", chat.Username, chat.Message))
				}
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Display name to log in with")
	cmd.Flags().StringVar(&emoji, "emoji", "", "Avatar emoji (default: random from the server)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the echo")

	return cmd
}
