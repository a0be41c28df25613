package cmd

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/jfmyers9/muse/internal/daemon"
	"github.com/spf13/cobra"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the muse per-user service",
	Long: `Stop the muse service and remove its launchd agent or systemd user unit.

After uninstalling, the daemon will no longer run automatically on login.
'muse start' still works.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		servicePath, err := daemon.ServicePath(runtime.GOOS)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		if _, err := os.Stat(servicePath); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(out, "Daemon is not installed (service file not found)")
			return nil
		}

		fmt.Fprintln(out, "Stopping daemon...")
		if err := unloadService(servicePath); err != nil {
			fmt.Fprintf(out, "Warning: failed to unload daemon: %v\n", err)
			fmt.Fprintln(out, "Continuing with service file removal...")
		} else {
			fmt.Fprintln(out, "✓ Daemon stopped")
		}

		if err := os.Remove(servicePath); err != nil {
			return fmt.Errorf("failed to remove service file: %w", err)
		}

		fmt.Fprintf(out, "✓ Removed %s\n", servicePath)
		fmt.Fprintln(out, "\nTo reinstall, run:")
		fmt.Fprintln(out, "  muse install")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
