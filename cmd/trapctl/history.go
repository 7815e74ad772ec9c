package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/snmptrap/internal/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List traps recorded by trap-listen --journal",
	Long: `List journaled traps, newest first.

Examples:
  trapctl history --journal traps.db
  trapctl history --journal traps.db --since 1h --oid 1.3.6.1.6.3.1.1.5.3
  trapctl history --journal traps.db -o json --limit 5`,
	RunE: runHistory,
}

var (
	historyJournal string
	historySource  string
	historyOID     string
	historySince   time.Duration
	historyLimit   int
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyJournal, "journal", "", "SQLite journal file")
	historyCmd.Flags().StringVar(&historySource, "source", "", "only traps from this sender (host:port)")
	historyCmd.Flags().StringVar(&historyOID, "oid", "", "only traps with this notification OID")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only traps received within this duration")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum number of traps")
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := historyJournal
	if path == "" {
		path = viper.GetString("journal.path")
	}
	if path == "" {
		return fmt.Errorf("journal file is required (use --journal)")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("journal: %w", err)
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	q := journal.Query{
		Source:  historySource,
		TrapOID: historyOID,
		Limit:   historyLimit,
	}
	if historySince > 0 {
		q.Since = time.Now().Add(-historySince)
	}

	entries, err := j.Recent(cmd.Context(), q)
	if err != nil {
		return err
	}

	switch OutputFormat(outputFormat) {
	case FormatJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	default:
		printEntries(entries)
	}
	return nil
}

func printEntries(entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Println("No traps recorded")
		return
	}

	table := NewTableWriter("ID", "RECEIVED", "SOURCE", "VERSION", "TRAP OID", "VARBINDS")
	for _, e := range entries {
		parts := make([]string, len(e.Varbinds))
		for i, vb := range e.Varbinds {
			parts[i] = vb.OID + "=" + vb.Value
		}
		table.AddRow(
			strconv.FormatInt(e.ID, 10),
			e.ReceivedAt.Local().Format(time.DateTime),
			e.Source,
			e.Version,
			e.TrapOID,
			strings.Join(parts, ", "),
		)
	}
	table.Render(os.Stdout)
}
