package main

import (
	"os"

	"github.com/conneroisu/melodi/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
