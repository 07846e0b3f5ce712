package journal

import (
	"chat-relay/client"
	"chat-relay/domain"
	"chat-relay/infrastructure/storage"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func NewJournalCommand() *cobra.Command {
	var (
		path      string
		sessionID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print the session journal of a relay",
		Args:  cobra.NoArgs,
		Example: `  relayctl journal --db /var/lib/relay/journal
  relayctl journal --session alice`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := client.LoadConfig()
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.JournalPath
			}
			if path == "" {
				return fmt.Errorf("no journal path: use --db or JOURNAL_FILEPATH")
			}
			if limit <= 0 {
				limit = cfg.JournalLimit
			}

			// Read-only, the relay may hold the lock
			db, err := badger.Open(badger.DefaultOptions(path).
				WithReadOnly(true).
				WithBypassLockGuard(true).
				WithLoggingLevel(badger.WARNING))
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer db.Close()

			repository := storage.NewJournalRepository(db, logs.GetLoggerFromString("WARN"))
			var entries []domain.JournalEntry
			if sessionID != "" {
				entries, err = repository.ListSession(sessionID, limit)
			} else {
				entries, err = repository.List(limit)
			}
			if err != nil {
				return err
			}
			PrintEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "db", "", "Journal directory (default: $JOURNAL_FILEPATH)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Only show one session, oldest first")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of entries (default: $RELAY_JOURNAL_LIMIT)")

	return cmd
}

// PrintEntries renders the entries as a borderless table.
func PrintEntries(w io.Writer, entries []domain.JournalEntry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"At", "Session", "Remote", "State", "Code", "Status"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, e := range entries {
		table.Append([]string{
			e.At.Local().Format(time.DateTime),
			e.SessionID,
			e.RemoteAddr,
			e.State.String(),
			strconv.Itoa(int(e.Code)),
			e.Code.String(),
		})
	}
	table.Render()
}
