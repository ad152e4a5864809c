package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/doeshing/litvis-go/internal/app"
	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/pkg/filesystem"
)

// NewCacheCommand creates the cache command with all subcommands
func NewCacheCommand(container *app.Container) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clean the environment and program cache",
	}

	cacheCmd.AddCommand(
		newCacheListCommand(container),
		newCacheSizeCommand(container),
		newCacheGCCommand(container),
		newCacheClearCommand(container),
	)

	return cacheCmd
}

// newCacheListCommand creates the 'cache list' subcommand
func newCacheListCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached environments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listEnvironments(cmd.OutOrStdout(), container)
		},
	}
}

// newCacheSizeCommand creates the 'cache size' subcommand
func newCacheSizeCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Show cache size",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showCacheSize(cmd.OutOrStdout(), container)
		},
	}
}

// newCacheGCCommand creates the 'cache gc' subcommand
func newCacheGCCommand(container *app.Container) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove old program artifacts and unused environments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return collectGarbage(cmd.Context(), cmd.OutOrStdout(), container, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Sweep even if the last sweep was recent")
	return cmd
}

// newCacheClearCommand creates the 'cache clear' subcommand
func newCacheClearCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearCache(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

// listEnvironments prints one line per cached environment
func listEnvironments(out io.Writer, container *app.Container) error {
	if container.Environments == nil {
		return fmt.Errorf(ErrCacheUnavailable)
	}

	summaries, err := container.Environments.List()
	if err != nil {
		return fmt.Errorf("failed to list environments: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, MsgNoEnvironments)
		return nil
	}

	for _, s := range summaries {
		fmt.Fprintln(out, formatEnvironment(s))
	}
	return nil
}

func formatEnvironment(s domain.EnvironmentSummary) string {
	used := "never"
	if !s.Metadata.UsedAt.IsZero() {
		used = humanize.Time(s.Metadata.UsedAt)
	}
	line := fmt.Sprintf("%s | %s | used %s | %d programs | %s",
		s.Hash,
		s.Metadata.Status,
		used,
		s.ProgramCount,
		humanize.Bytes(uint64(s.SizeBytes)))
	if s.Metadata.ErrorMessage != "" {
		line += " | " + firstLine(s.Metadata.ErrorMessage)
	}
	return line
}

// showCacheSize displays the cache directory size
func showCacheSize(out io.Writer, container *app.Container) error {
	if container.Environments == nil {
		return fmt.Errorf(ErrCacheUnavailable)
	}

	dir := container.Environments.Root()
	totalSize, err := filesystem.DirSize(dir)
	if err != nil {
		return fmt.Errorf("failed to calculate cache size: %w", err)
	}

	fmt.Fprintf(out, "Cache directory: %s\nSize: %s\n", dir, humanize.Bytes(uint64(totalSize)))
	return nil
}

// collectGarbage runs a sweep and prints its report
func collectGarbage(ctx context.Context, out io.Writer, container *app.Container, force bool) error {
	if container.Collector == nil {
		return fmt.Errorf(ErrCacheUnavailable)
	}

	var (
		report domain.GCReport
		err    error
	)
	if force {
		report, err = container.Collector.Collect(ctx)
	} else {
		report, err = container.Collector.CollectIfNeeded(ctx)
	}
	if err != nil {
		return fmt.Errorf("garbage collection failed: %w", err)
	}
	writeGCReport(out, report)
	return nil
}

func writeGCReport(out io.Writer, report domain.GCReport) {
	if report.Skipped {
		if report.SkipReason == domain.SkipIntervalNotElapsed {
			fmt.Fprintf(out, "Skipped: %s (use --force to sweep anyway)\n", report.SkipReason)
		} else {
			fmt.Fprintf(out, "Skipped: %s\n", report.SkipReason)
		}
		return
	}
	fmt.Fprintf(out, "Programs retained: %d\nPrograms removed: %d\n", report.ProgramsRetained, report.ProgramsRemoved)
	for _, dir := range report.RemovedDirectories {
		fmt.Fprintf(out, "Removed %s\n", dir)
	}
}

// clearCache removes every environment under the cache root
func clearCache(ctx context.Context, out io.Writer, container *app.Container) error {
	if container.Environments == nil {
		return fmt.Errorf(ErrCacheUnavailable)
	}

	if err := container.Environments.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintf(out, "Cleared %s\n", container.Environments.TreeDir())
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
