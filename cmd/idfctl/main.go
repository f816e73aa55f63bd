package main

import (
	"fmt"
	"os"

	"github.com/danmuck/imodctl/internal/logging"
)

func main() {
	logging.ConfigureRuntime()
	if err := execute(newRootCmd()); err != nil {
		fmt.Fprintf(os.Stderr, "idfctl: %v\n", err)
		os.Exit(1)
	}
}
