// Package main implements the nightwatch command, which serves the test
// endpoints and runs the diagnostic suite and bulk generator from the
// command line.
package main

import (
	"os"
)

func main() {
	if err := RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
