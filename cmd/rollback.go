package cmd

import (
	"fmt"
	"log"

	"github.com/mendtool/mend/pkg/changetracker"
	"github.com/mendtool/mend/pkg/config"
	"github.com/mendtool/mend/pkg/prompts"
	"github.com/mendtool/mend/pkg/utils"
	"github.com/mendtool/mend/pkg/workspace"

	"github.com/spf13/cobra"
)

var (
	rollbackYes     bool
	rollbackRestore bool
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback [revision-id]",
	Short: "Revert the changes of a revision",
	Long: `Writes every file a revision touched back to its pre-change
content. Without a revision ID, shows the recent revision history.

Examples:
  mend rollback                                       # show recent revisions
  mend rollback last                                  # revert the most recent revision
  mend rollback 2f0c6f5e-9b1d-4a6e-8f3a-1c2d3e4f5a6b  # revert that revision
  mend rollback <revision-id> --restore               # re-apply a reverted revision`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadOrInit(true)
		if err != nil {
			log.Fatal(prompts.ConfigLoadFailed(err))
		}
		tracker := changetracker.NewTracker(cfg.ChangeLogFile)

		if len(args) == 0 {
			records, err := tracker.AllChanges()
			if err != nil {
				log.Fatalf("Failed to read the change log: %v", err)
			}
			if len(records) == 0 {
				fmt.Println(prompts.NoChangesRecorded())
				return
			}
			printRecentChanges(records, 10, false)
			fmt.Println("\nTo revert one, run: mend rollback <revision-id>")
			return
		}

		revisionID := args[0]
		if revisionID == "last" {
			revisionID, err = tracker.LatestRevisionID()
			if err != nil {
				log.Fatalf("Failed to find the latest revision: %v", err)
			}
		}
		records, err := tracker.ChangesForRevision(revisionID)
		if err != nil {
			log.Fatalf("Failed to read the change log: %v", err)
		}
		if len(records) == 0 {
			fmt.Printf("No changes recorded for revision %s\n", revisionID)
			return
		}

		action := "Revert"
		if rollbackRestore {
			action = "Restore"
		}
		if !rollbackYes {
			logger := utils.GetLogger(skipPrompt)
			question := fmt.Sprintf("%s %d change(s) from revision %s?", action, len(records), revisionID)
			if !logger.AskForConfirmation(question, false, false) {
				fmt.Println("Cancelled.")
				return
			}
		}

		files := workspace.New(".")
		if rollbackRestore {
			if err := tracker.RestoreRevision(revisionID, files); err != nil {
				log.Fatalf("❌ Restore failed: %v", err)
			}
			fmt.Println(prompts.RevisionRestored(revisionID))
			return
		}
		if err := tracker.RevertRevision(revisionID, files); err != nil {
			log.Fatalf("❌ Rollback failed: %v", err)
		}
		fmt.Println(prompts.RevisionReverted(revisionID))
	},
}

func init() {
	rollbackCmd.Flags().BoolVarP(&rollbackYes, "yes", "y", false, "Skip the confirmation prompt")
	rollbackCmd.Flags().BoolVar(&rollbackRestore, "restore", false, "Re-apply a previously reverted revision")
	rootCmd.AddCommand(rollbackCmd)
}
