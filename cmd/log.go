package cmd

import (
	"fmt"
	"log"

	"github.com/mendtool/mend/pkg/changetracker"
	"github.com/mendtool/mend/pkg/config"
	"github.com/mendtool/mend/pkg/prompts"

	"github.com/spf13/cobra"
)

var (
	logCount    int
	logShowDiff bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recorded changes",
	Long: `Displays the changes mend has applied, grouped by revision and most
recent first. Use 'mend rollback <revision-id>' to revert one.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadOrInit(true)
		if err != nil {
			log.Fatal(prompts.ConfigLoadFailed(err))
		}

		tracker := changetracker.NewTracker(cfg.ChangeLogFile)
		records, err := tracker.AllChanges()
		if err != nil {
			log.Fatalf("Failed to read the change log: %v", err)
		}
		if len(records) == 0 {
			fmt.Println(prompts.NoChangesRecorded())
			return
		}

		printRecentChanges(records, logCount, logShowDiff)
	},
}

func init() {
	logCmd.Flags().IntVarP(&logCount, "count", "n", 10, "Number of revisions to show")
	logCmd.Flags().BoolVarP(&logShowDiff, "diff", "d", false, "Show the full diff of each change")
	rootCmd.AddCommand(logCmd)
}

// printRecentChanges prints up to maxRevisions revisions from records, which
// must already be ordered most recent first.
func printRecentChanges(records []changetracker.ChangeRecord, maxRevisions int, showDiff bool) {
	shown := 0
	currentRevision := ""
	for _, record := range records {
		if record.RevisionID != currentRevision {
			if shown >= maxRevisions {
				break
			}
			shown++
			currentRevision = record.RevisionID
			fmt.Printf("\nRevision %s  (%s)\n", record.RevisionID, record.Timestamp.Format("2006-01-02 15:04:05"))
			if record.Instructions != "" {
				fmt.Printf("  %q\n", record.Instructions)
			}
		}

		statusNote := ""
		if record.Status != "active" {
			statusNote = fmt.Sprintf("  (%s)", record.Status)
		}
		fmt.Printf("  %-8s  %-30s  %s%s\n", record.ChangeType, record.Filename, record.Summary, statusNote)
		if showDiff {
			changetracker.PrintDiff(record.Filename, record.OriginalCode, record.NewCode)
		}
	}
}
