package main

import (
	"os"

	"github.com/cyp0633/librrule/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
