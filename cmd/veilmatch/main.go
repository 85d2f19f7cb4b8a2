package main

import (
	"os"

	"github.com/MikeSquared-Agency/veilmatch/cmd/veilmatch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
