package main

import (
	"context"
	"fmt"
	"os"

	"planetalign/internal/cli"
	"planetalign/internal/config"
	"planetalign/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "planetalign: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.Setup(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "planetalign: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cli.NewRootCmd(cfg, log)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
