package main

import (
	"os"

	"github.com/solatis/profilekeeper/cmd/profilekeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
