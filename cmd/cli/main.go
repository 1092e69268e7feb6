// Package main is the entry point for the runqueue CLI binary.
package main

import (
	"os"

	"runqueue/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
