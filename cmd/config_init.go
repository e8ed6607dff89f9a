package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vendor-research/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml with defaults",
	RunE: func(cmd *cobra.Command, _ []string) error {
		const path = "config.yaml"
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return eris.Errorf("%s already exists (use --force to overwrite)", path)
		}

		defaults, err := config.Default()
		if err != nil {
			return eris.Wrap(err, "build default config")
		}
		if err := defaults.WriteFile(path); err != nil {
			return eris.Wrap(err, "write config")
		}

		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
