package cmd

import (
	"fmt"
	"log"

	"github.com/mendtool/mend/pkg/config"
	"github.com/mendtool/mend/pkg/workspace"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration in the current directory",
	Long:  `Creates a .mend/config.json in the current working directory, allowing for project-specific settings.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Initializing configuration in the current directory...")
		if err := config.InitConfig(skipPrompt); err != nil {
			log.Fatalf("Failed to initialize configuration: %v", err)
		}
		if err := workspace.AddToIgnore(".gitignore", ".mend/"); err != nil {
			fmt.Printf("Warning: could not add .mend/ to .gitignore: %v\n", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
