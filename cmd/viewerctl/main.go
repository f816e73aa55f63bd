package main

import (
	"fmt"
	"os"

	"github.com/danmuck/imodctl/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "viewerctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "viewerctl",
		Short:         "Drive an external grid viewer over its command socket",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newPrintCmd(), newLaunchCmd(), newConfigCmd())
	return root
}
