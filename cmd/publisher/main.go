package main

import (
	"os"

	"github.com/Nika0000/publisher-cli/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
