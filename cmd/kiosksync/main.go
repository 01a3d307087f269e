// Command kiosksync is the kiosk order synchronization CLI.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/kiosksync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
