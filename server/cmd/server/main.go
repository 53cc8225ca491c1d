package main

import (
	"fmt"
	"os"

	"github.com/interruptmeter/interruptmeter/server/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "interruptmeter:", err)
		os.Exit(1)
	}
}
