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
	codeFilename string
	codeBuffer   bool
)

var codeCmd = &cobra.Command{
	Use:   "code [instructions]",
	Short: "Generate or modify a file from instructions, then self-correct",
	Long: `Generates or rewrites the target file from natural language
instructions, then validates it against the diagnostics your editor
publishes and keeps correcting until they are clean.

Examples:
  mend code "add a retry loop around the fetch call" -f client.py
  mend code "create a CLI entrypoint with argparse" -f main.py --skip-prompt
  mend code "extract a helper" -f client.py --buffer < unsaved-client.py`,
	Run: func(cmd *cobra.Command, args []string) {
		instructions := ""
		if len(args) > 0 {
			instructions = args[0]
		}
		if instructions == "" {
			fmt.Println(prompts.InstructionsRequired())
			cmd.Help()
			return
		}
		if codeFilename == "" {
			fmt.Println("A target file is required, e.g. -f client.py")
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

		if codeBuffer {
			if err := s.loadBufferFromStdin(codeFilename); err != nil {
				log.Fatal(prompts.RequestFailed(err))
			}
			defer s.files.ClearBuffer(codeFilename)
		}

		s.logger.Logf("user request: code %q -f %s", instructions, codeFilename)
		fmt.Println(prompts.ProcessingRequest())

		result, err := s.engine.Run(ctx, correction.Request{
			Instruction: instructions,
			TargetPath:  codeFilename,
		})
		if err != nil {
			log.Fatal(prompts.RequestFailed(err))
		}
		printResult(result)
	},
}

func init() {
	codeCmd.Flags().StringVarP(&codeFilename, "filename", "f", "", "The file to generate or modify")
	codeCmd.Flags().BoolVar(&codeBuffer, "buffer", false, "Read the file's unsaved editor content from stdin")
	rootCmd.AddCommand(codeCmd)
}
