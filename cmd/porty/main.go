package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/L1nMay/porty/cmd/porty/commands"
)

func main() {
	if err := commands.NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
