package main

import (
	"os"

	"github.com/mendtool/mend/cmd"
	"github.com/mendtool/mend/pkg/utils"
)

func main() {
	logger := utils.GetLogger(false)
	// Close flushes the rotating log file on the way out.
	defer func() {
		if err := logger.Close(); err != nil {
			os.Stderr.WriteString("Error closing logger: " + err.Error() + "\n")
		}
	}()

	if err := cmd.Execute(); err != nil {
		logger.Logf("Application error: %v", err)
		os.Exit(1)
	}
}
