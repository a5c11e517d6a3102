// Command courier runs budgeted cross-account messaging environments.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/courier/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(int(cli.GetExitCode(err)))
	}
}
