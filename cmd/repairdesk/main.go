package main

import (
	"os"

	"github.com/infinitetech/repairdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
