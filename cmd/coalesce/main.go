package main

import (
	"os"

	"github.com/mindfold/coalesce/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
