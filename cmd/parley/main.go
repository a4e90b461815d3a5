package main

import (
	"os"

	"github.com/go-go-golems/parley/cmd/parley/cmds"
)

func main() {
	rootCmd := cmds.NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
