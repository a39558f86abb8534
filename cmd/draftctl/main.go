package main

import (
	"fmt"
	"os"

	"github.com/draftlens/backend/cmd/draftctl/commands"
)

func main() {
	if err := commands.NewRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
