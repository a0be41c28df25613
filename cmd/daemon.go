package cmd

import (
	"os"

	"github.com/jfmyers9/muse/internal/daemon"
	"github.com/spf13/cobra"
)

// daemonCmd runs the worker. `muse start` launches it detached; service managers
// run it in the foreground.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the muse daemon in the foreground",
	Long: `Run the muse daemon in the foreground.

The daemon will:
- Create the private work directory and enter it
- Take the single-instance lock and bind the control socket
- Open the audio device and serve one command per connection, in order
- Log every command outcome to muse.log in the work directory
- Shut down on 'muse stop', SIGINT or SIGTERM

Use 'muse start' to launch it in the background instead.`,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Bootstrap errors go to stderr; once running the daemon logs to its file
	logger := setupLogger(os.Stderr, cfg.LogLevel)

	d := daemon.New(cfg, logger, daemon.WithVersion(version))
	if err := d.Run(cmd.Context()); err != nil {
		logger.Error().Err(err).Msg("Daemon failed")
		return err
	}

	return nil
}
