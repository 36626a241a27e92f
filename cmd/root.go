package cmd

import (
	"github.com/spf13/cobra"
)

// Global flags shared by all subcommands.
var (
	skipPrompt   bool
	modelFlag    string
	providerFlag string
	uiEnabled    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mend",
	Short: "Self-correcting code generation against live editor diagnostics",
	Long: `Mend generates or repairs a file with an LLM, then watches the
diagnostics your editor publishes to .mend/diagnostics.json and keeps
correcting the file until the diagnostics are clean, the iteration budget
runs out, or you cancel.

Available commands:
  code      - Generate or modify a file from instructions, then self-correct
  fix       - Run the correction loop against a file's current diagnostics
  log       - Show recorded changes
  rollback  - Revert the changes of a revision
  init      - Write a default .mend/config.json
  version   - Print version information`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&skipPrompt, "skip-prompt", false, "Skip confirmation prompts and use defaults")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model name override")
	rootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "", "Provider override (ollama or openai)")
	rootCmd.PersistentFlags().BoolVar(&uiEnabled, "ui", false, "Stream progress events on a local websocket")
}
