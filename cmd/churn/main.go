package main

import (
	"os"

	"github.com/wonny/churn-mlops/cmd/churn/commands"
)

// main is the entry point for the churn CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/churn [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
