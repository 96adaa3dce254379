package main

import (
	"fmt"
	"os"

	"github.com/Oleguzik/ngo-automation/internal/cli"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/config"
)

func main() {
	flags := cli.ParseServeFlags()
	cfg := config.LoadOrEnvWithPath(flags.Config)

	if err := cli.RunServe(cfg, flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
