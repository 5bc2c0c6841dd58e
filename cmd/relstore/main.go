// Command relstore compiles CUE model definitions and normalizes, stores
// and queries relational records against SQLite.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/relstore/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// Commands report their own failures; anything else is a flag or
		// argument error from cobra.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
