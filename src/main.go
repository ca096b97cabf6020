package main

import (
	"os"

	"budgee-ledger/src/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
