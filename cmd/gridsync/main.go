// Command gridsync serves, edits and tests buffered tabular datasets.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/gridsync/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
