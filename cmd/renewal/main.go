// Command renewal evaluates third-party profile renewal triggers.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/renewal/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
