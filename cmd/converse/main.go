package main

import (
	"os"

	"github.com/amirel/converse/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
