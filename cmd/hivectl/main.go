// Package main is the entry point for the taskhive CLI tool.
package main

import (
	"os"

	"github.com/task-hive/taskhive/cmd/hivectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
