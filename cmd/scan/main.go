package main

import (
	"fmt"
	"os"

	"github.com/Oleguzik/ngo-automation/internal/cli"
	"github.com/Oleguzik/ngo-automation/internal/infrastructure/config"
)

func main() {
	flags := cli.ParseScanFlags()
	cfg := config.LoadOrEnvWithPath(flags.Config)

	if err := cli.RunScan(cfg, flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
