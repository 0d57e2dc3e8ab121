package main

import (
	"os"

	"github.com/mahendra/kerani/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
