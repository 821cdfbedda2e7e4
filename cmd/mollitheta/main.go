package main

import (
	"fmt"
	"os"

	"github.com/JohnNDvorak/mollitheta/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mollitheta: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
