package main

import (
	"os"

	"github.com/solatis/groupstore/cmd/groupstore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
