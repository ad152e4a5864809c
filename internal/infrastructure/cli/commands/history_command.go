package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/doeshing/litvis-go/internal/app"
	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/infrastructure/cli/helpers"
	"github.com/doeshing/litvis-go/internal/ports"
)

// NewHistoryCommand creates the history command with all subcommands
func NewHistoryCommand(container *app.Container) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect program run history",
	}

	historyCmd.AddCommand(
		newHistoryListCommand(container),
		newHistoryStatsCommand(container),
		newHistoryClearCommand(container),
	)

	return historyCmd
}

// newHistoryListCommand creates the 'history list' subcommand
func newHistoryListCommand(container *app.Container) *cobra.Command {
	var limit int
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent program runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listHistoryEntries(cmd.OutOrStdout(), container.HistoryStore, limit, search)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", DefaultHistoryLimit, "Max entries to show")
	cmd.Flags().StringVar(&search, "search", "", "Only show runs whose document, context or program contains this text")
	return cmd
}

// newHistoryStatsCommand creates the 'history stats' subcommand
func newHistoryStatsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show success and cache hit rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistoryStats(cmd.OutOrStdout(), container.HistoryStore)
		},
	}
}

// newHistoryClearCommand creates the 'history clear' subcommand
func newHistoryClearCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearHistory(container.HistoryStore)
		},
	}
}

// listHistoryEntries lists recent history entries
func listHistoryEntries(out io.Writer, store ports.RunHistoryRepository, limit int, search string) error {
	if store == nil {
		return fmt.Errorf(ErrHistoryStoreUnavailable)
	}

	records, err := store.Records(limit, search)
	if err != nil {
		return fmt.Errorf("failed to retrieve history records: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}

	for _, rec := range records {
		fmt.Fprintln(out, formatRecord(rec))
	}
	return nil
}

func formatRecord(rec domain.RunRecord) string {
	source := "compiled"
	if rec.FromCache {
		source = "cached"
	}
	return fmt.Sprintf("%s | %s | %s#%s | %s (%s, %dms) | %d messages",
		humanize.Time(rec.Timestamp),
		rec.Program,
		filepath.Base(rec.Document),
		rec.Context,
		rec.Status,
		source,
		rec.DurationMS,
		rec.MessageCount)
}

// clearHistory clears the history file
func clearHistory(store ports.RunHistoryRepository) error {
	if store == nil {
		return fmt.Errorf(ErrHistoryStoreUnavailable)
	}

	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// showHistoryStats displays success rate, cache hit rate and top documents
func showHistoryStats(out io.Writer, store ports.RunHistoryRepository) error {
	if store == nil {
		return fmt.Errorf(ErrHistoryStoreUnavailable)
	}

	records, err := store.Records(MaxHistoryAnalysisRecords, "")
	if err != nil {
		return fmt.Errorf("failed to retrieve history for analysis: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}

	succeeded, cached := 0, 0
	documents := map[string]int{}
	for _, rec := range records {
		if rec.Status == domain.ProgramSucceeded {
			succeeded++
		}
		if rec.FromCache {
			cached++
		}
		documents[rec.Document]++
	}

	fmt.Fprintf(out, "Runs: %d\n", len(records))
	fmt.Fprintf(out, "Success rate: %.1f%%\n", helpers.Percentage(succeeded, len(records)))
	fmt.Fprintf(out, "Cache hit rate: %.1f%%\n", helpers.Percentage(cached, len(records)))
	fmt.Fprintln(out, "Top documents:")
	for _, stat := range helpers.TopEntries(documents, TopDocumentsShown) {
		fmt.Fprintf(out, "  %s: %d\n", stat.Name, stat.Count)
	}
	return nil
}
