package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jfmyers9/muse/internal/daemon"
	"github.com/spf13/cobra"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the muse daemon as a per-user service",
	Long: `Install the muse daemon as a per-user service that starts on login.

On macOS this writes a launchd agent to ~/Library/LaunchAgents/ and loads it
with launchctl. On Linux it writes a systemd user unit to
~/.config/systemd/user/ and enables it with systemctl --user.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Get the path to the current executable
	binaryPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get the actual binary path
	binaryPath, err = filepath.EvalSymlinks(binaryPath)
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	svc := daemon.ServiceConfig{
		BinaryPath: binaryPath,
		WorkDir:    cfg.WorkDir,
	}
	if configPath != "" {
		if svc.ConfigPath, err = filepath.Abs(configPath); err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	content, err := daemon.GenerateServiceFile(runtime.GOOS, svc)
	if err != nil {
		return err
	}

	servicePath, err := daemon.ServicePath(runtime.GOOS)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(servicePath), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(servicePath), err)
	}

	out := cmd.OutOrStdout()

	// Check if the service is already installed
	if _, err := os.Stat(servicePath); err == nil {
		fmt.Fprintln(out, "Daemon is already installed. Unloading first...")
		if err := unloadService(servicePath); err != nil {
			fmt.Fprintf(out, "Warning: failed to unload existing daemon: %v\n", err)
		}
	}

	if err := os.WriteFile(servicePath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}
	fmt.Fprintf(out, "✓ Installed service file to %s\n", servicePath)

	if err := loadService(servicePath); err != nil {
		return fmt.Errorf("failed to load daemon: %w", err)
	}

	fmt.Fprintln(out, "✓ Daemon loaded and started successfully")
	fmt.Fprintf(out, "✓ Logs will be written to %s\n", cfg.LogFile)
	fmt.Fprintln(out, "\nTo uninstall, run:")
	fmt.Fprintln(out, "  muse uninstall")

	return nil
}

// loadService registers and starts the service with the platform's service manager
func loadService(servicePath string) error {
	if runtime.GOOS == "darwin" {
		domain := fmt.Sprintf("gui/%d", os.Getuid())
		return runTool("launchctl", "bootstrap", domain, servicePath)
	}

	if err := runTool("systemctl", "--user", "daemon-reload"); err != nil {
		return err
	}
	return runTool("systemctl", "--user", "enable", "--now", filepath.Base(servicePath))
}

// unloadService stops the service and removes it from the service manager
func unloadService(servicePath string) error {
	if runtime.GOOS == "darwin" {
		service := fmt.Sprintf("gui/%d/%s", os.Getuid(), daemon.ServiceLabel)
		return runTool("launchctl", "bootout", service)
	}
	return runTool("systemctl", "--user", "disable", "--now", filepath.Base(servicePath))
}

func runTool(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			return fmt.Errorf("%s %s failed: %s", name, args[0], msg)
		}
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
	return nil
}
