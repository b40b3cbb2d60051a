package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oceanobs/chanharvest/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "chanharvest",
		Short: "Incremental harvester for observatory channel data feeds",
		Long: `Chanharvest keeps a downstream ingest directory fed with per-channel
time-series files. It tracks a watermark per channel and qc level, downloads
only the chunks past the watermark, validates each file through a fixed gate
chain and publishes survivors under content-hashed names.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewRunCmd(),
		commands.NewStatusCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
