package main

import (
	"os"

	"github.com/abramin/cmodel/cmd/cmodel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
