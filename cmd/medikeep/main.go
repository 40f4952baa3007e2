// Command medikeep filters and sorts medical record collections with CUE
// view specs.
package main

import (
	"fmt"
	"os"

	_ "time/tzdata"

	"github.com/afairgiant/medikeep/internal/cli"
)

func main() {
	rootCmd := cli.NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
