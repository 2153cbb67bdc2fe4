package main

import (
	"os"

	"github.com/rustyeddy/candlestream/cmd/candlestream/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
