package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [path]",
	Short: "Synchronize a directory into the knowledge base",
	Long: `Scan the directory, index new and modified documents, and purge
documents that no longer exist on disk. Unchanged documents are skipped.

Examples:
  kb sync .                 # Synchronize the current directory
  kb sync /path/to/docs     # Synchronize a specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	base, err := openKnowledgeBase()
	if err != nil {
		return err
	}
	defer base.Close()

	fmt.Printf("Scanning %s...\n", path)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex

	progress := func(processed, total int, currentFile string) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(processed)
	}

	report, err := base.Sync(cmd.Context(), path, progress)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("Scanned %d files in %v\n", report.Scanned, report.Duration.Round(0))
	fmt.Printf("  added: %d  updated: %d  removed: %d  unchanged: %d\n",
		report.Added, report.Updated, report.Removed, report.Unchanged)
	fmt.Printf("  chunks indexed: %d\n", report.ChunksIndexed)

	if len(report.Failures) > 0 {
		fmt.Printf("\n%d files could not be processed (retried next sync):\n", len(report.Failures))
		for _, f := range report.Failures {
			fmt.Printf("  %s: %v\n", f.Path, f.Err)
		}
	}
	return nil
}
