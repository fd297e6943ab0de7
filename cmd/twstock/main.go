package main

import (
	"os"

	"github.com/jorseph/tw-stock/cmd/twstock/commands"
)

// main is the entry point for the tw-stock CLI
// ⭐ 統一 CLI 進入點: go run ./cmd/twstock [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
