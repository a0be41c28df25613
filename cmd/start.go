package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jfmyers9/muse/internal/daemon"
	"github.com/jfmyers9/muse/internal/protocol"
	"github.com/spf13/cobra"
)

// startCmd launches the daemon in the background
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the muse daemon in the background",
	Long: `Start the muse daemon in the background.

The daemon is launched detached from the terminal in its own session. start
waits until the daemon answers on the control socket, or fails after the
configured start_timeout.`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

// stopCmd asks the daemon to shut down
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the muse daemon",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

// statusCmd reports whether the daemon is running
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	opts := daemon.LaunchOptions{
		ConfigPath: configPath,
		SocketPath: cfg.Socket,
		WorkDir:    cfg.WorkDir,
		LogLevel:   logLevel,
	}

	// A busy daemon must not hold the client forever
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.StartTimeout)
	defer cancel()

	result, err := daemon.EnsureStarted(ctx, cfg.Socket, exe, opts, cfg.StartTimeout)
	if err != nil {
		return fmt.Errorf("%w (see %s)", err, cfg.LogFile)
	}

	out := cmd.OutOrStdout()
	switch result.State {
	case daemon.StartStateAlreadyRunning:
		fmt.Fprintln(out, "Daemon already running")
	default:
		fmt.Fprintf(out, "Daemon started (socket %s)\n", cfg.Socket)
	}
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.StartTimeout)
	defer cancel()

	err = daemon.RequestStop(ctx, cfg.Socket, cfg.StartTimeout)
	if errors.Is(err, daemon.ErrDaemonNotRunning) {
		fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	if err := daemon.Ping(ctx, cfg.Socket); err != nil {
		if errors.Is(err, daemon.ErrDaemonNotRunning) {
			fmt.Fprintln(out, "Daemon is not running")
			return nil
		}
		return err
	}

	rows := [][]string{{"Socket", cfg.Socket}}

	if info, err := daemon.ReadRunInfo(cfg.RunInfoFile()); err == nil {
		rows = append(rows,
			[]string{"PID", fmt.Sprint(info.PID)},
			[]string{"Version", info.Version},
			[]string{"Started", info.StartedAt.Format(time.DateTime)},
			[]string{"Uptime", info.Uptime().String()},
			[]string{"Log", info.LogFile},
		)
	}

	if resp, err := protocol.Send(ctx, cfg.Socket, protocol.ActionQueue); err == nil && resp.OK() {
		rows = append(rows, []string{"Playback", resp.Text})
	}

	fmt.Fprintln(out, "Daemon is running")
	fmt.Fprint(out, renderTable([]string{"Field", "Value"}, rows, nil))
	fmt.Fprintln(out)
	return nil
}
