// Command beacon records analytics events and delivers them to a collector.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/beacon/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
