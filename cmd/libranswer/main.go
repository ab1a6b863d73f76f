// Package main provides the entry point for the libranswer CLI.
package main

import (
	"os"

	"github.com/libranswer/libranswer/cmd/libranswer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
