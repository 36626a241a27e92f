package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mendtool/mend/pkg/correction"
	"github.com/mendtool/mend/pkg/prompts"

	"github.com/spf13/cobra"
)

var (
	fixFilename string
	fixBuffer   bool
)

var fixCmd = &cobra.Command{
	Use:   "fix [hint]",
	Short: "Run the correction loop against a file's current diagnostics",
	Long: `Takes the target file as it is, reads the current diagnostics for
it, and runs the correction loop until they are clean. An optional hint is
passed to the model alongside the issues.

Examples:
  mend fix -f server.py
  mend fix -f server.py "the import block was reshuffled by a bad merge"
  mend fix -f server.py --buffer < unsaved-server.py`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hint := ""
		if len(args) > 0 {
			hint = args[0]
		}
		if fixFilename == "" {
			fmt.Println("A target file is required, e.g. -f server.py")
			cmd.Help()
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := newSession(ctx)
		if err != nil {
			log.Fatal(prompts.ConfigLoadFailed(err))
		}
		defer s.close()

		if fixBuffer {
			if err := s.loadBufferFromStdin(fixFilename); err != nil {
				log.Fatal(prompts.RequestFailed(err))
			}
			defer s.files.ClearBuffer(fixFilename)
		}

		s.logger.Logf("user request: fix -f %s %q", fixFilename, hint)
		fmt.Println(prompts.ProcessingRequest())

		result, err := s.engine.Run(ctx, correction.Request{
			Instruction:           hint,
			TargetPath:            fixFilename,
			SkipInitialGeneration: true,
		})
		if err != nil {
			log.Fatal(prompts.RequestFailed(err))
		}
		printResult(result)
	},
}

func init() {
	fixCmd.Flags().StringVarP(&fixFilename, "filename", "f", "", "The file to fix")
	fixCmd.Flags().BoolVar(&fixBuffer, "buffer", false, "Read the file's unsaved editor content from stdin")
	rootCmd.AddCommand(fixCmd)
}
