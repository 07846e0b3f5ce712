package chat

import (
	"chat-relay/client"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

func NewChatCommand() *cobra.Command {
	var (
		userID   string
		url      string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join the relay and chat from the terminal",
		Args:  cobra.NoArgs,
		Example: `  relayctl chat
  relayctl chat --user alice
  relayctl chat --url ws://relay.local:9001/ws`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := client.LoadConfig()
			if err != nil {
				return err
			}
			if userID != "" {
				cfg.UserID = userID
			}
			if url != "" {
				cfg.URL = url
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logs.GetLoggerFromString(logLevel)
			return client.New(cfg, log, cmd.OutOrStdout()).Run(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Identity to request (default: assigned by the relay)")
	cmd.Flags().StringVar(&url, "url", "", "Relay websocket url (default: $RELAY_URL)")
	cmd.Flags().StringVar(&logLevel, "log-level", "WARN", "Client log level")

	return cmd
}
