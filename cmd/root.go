package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jfmyers9/muse/internal/config"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Global flags
var (
	configPath string
	socketPath string
	workDir    string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "muse",
	Short: "Minimal background audio player",
	Long: `muse is a minimal background audio player.

'muse start' launches a daemon that owns the audio device and listens on a
unix socket in a private work directory. The other commands send it one
command each: play, pause, enqueue a file, clear or list the queue, show the
command history, or stop the daemon.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.config/muse/config.toml)")
	flags.StringVar(&socketPath, "socket", "", "Control socket path (default <work-dir>/muse.socket)")
	flags.StringVar(&workDir, "work-dir", "", "Private work directory (default <tmp>/muse-<uid>)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// loadConfig resolves configuration for cmd, applying the global flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}
