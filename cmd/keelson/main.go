// Command keelson generates a Dockerfile for an application source tree.
package main

import (
	"fmt"
	"os"

	"github.com/wharflab/keelson/cmd/keelson/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cmd.ExitConfigError)
	}
}
