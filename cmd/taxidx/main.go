// Package main provides the entry point for the taxidx CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/taxidx/cmd/taxidx/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Stderr))
}
