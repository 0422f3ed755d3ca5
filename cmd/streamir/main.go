// Command streamir compiles StreamIR specifications and runs monitors over
// event traces.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/reactive-systems/rtlola-streamir/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// cobra errors (unknown flags, bad arguments) are not reported by
		// the commands themselves
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
