package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/jfmyers9/muse/internal/config"
	"github.com/spf13/cobra"
)

// configCmd groups configuration helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the muse configuration file",
}

// configInitCmd writes a sample config file
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default values",
	Long: `Write a TOML config file holding every setting at its default value.

The file is written to ~/.config/muse/config.toml unless --path is given.
Existing files are left alone unless --overwrite is set.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().String("path", "", "Where to write the config file")
	configInitCmd.Flags().Bool("overwrite", false, "Replace an existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	overwrite, _ := cmd.Flags().GetBool("overwrite")

	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}

	if err := config.WriteSample(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
