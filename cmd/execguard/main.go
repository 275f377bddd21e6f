// Package main provides the entry point for the execguard CLI.
package main

import (
	"fmt"
	"os"

	"github.com/execguard/execguard/cmd/execguard/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
