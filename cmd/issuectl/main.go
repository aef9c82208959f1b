package main

import (
	"fmt"
	"os"
)

// Set by ldflags.
var version = "dev"

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
