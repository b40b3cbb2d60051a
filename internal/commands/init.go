package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [project-name]",
		Short: "Initialize a new chanharvest project",
		Long:  "Creates the project directory layout and a starter chanharvest.yaml.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args[0])
		},
	}
}

const starterConfig = `store: file
file:
  path: ./wip/state.json

feed:
  baseUrl: https://data.aims.gov.au
  categoryId: 300
  qcLevels: [0, 1]
  timeout: 60s

dirs:
  incoming: ./incoming
  work: ./wip

harvest:
  backlogLimit: 200
  workers: 1
  lockTtl: 2h

alerts:
  - type: console

log:
  format: text
  level: info
`

func runInit(projectName string) error {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Initializing chanharvest project: %s\n", projectName)

	for _, dir := range []string{"incoming", "wip"} {
		path := filepath.Join(projectName, dir)
		if err := os.MkdirAll(path, 0o775); err != nil {
			return fmt.Errorf("creating directory %s: %w", path, err)
		}
	}

	configPath := filepath.Join(projectName, "chanharvest.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	color.Green("  ✓ Project scaffolded")
	fmt.Println()
	_, _ = bold.Println("Next steps:")
	fmt.Printf("  cd %s\n", projectName)
	fmt.Println("  edit chanharvest.yaml (feed.baseUrl, dirs)")
	fmt.Println("  chanharvest run")
	fmt.Println("  chanharvest status")
	return nil
}
