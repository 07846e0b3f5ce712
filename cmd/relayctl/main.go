package main

import (
	"chat-relay/cmd/relayctl/internal/chat"
	"chat-relay/cmd/relayctl/internal/journal"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRelayctlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "relayctl",
		Short:        "Chat relay client and operator tools",
		Example:      "relayctl chat --user alice",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		chat.NewChatCommand(),
		journal.NewJournalCommand(),
	)

	return cmd
}

func main() {
	_ = godotenv.Load()
	cmd := NewRelayctlCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
