package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jfmyers9/muse/internal/daemon"
	"github.com/jfmyers9/muse/internal/protocol"
	"github.com/spf13/cobra"
)

// commandTimeout bounds a single request to the daemon
const commandTimeout = 5 * time.Second

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Resume playback",
	Long:  `Resume playback of the queue. Does nothing when the queue is empty.`,
	Args:  cobra.NoArgs,
	RunE:  simpleCommand(protocol.ActionPlay),
}

// pauseCmd represents the pause command
var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback",
	Long:  `Pause playback, keeping the position in the current file.`,
	Args:  cobra.NoArgs,
	RunE:  simpleCommand(protocol.ActionPause),
}

// clearCmd represents the clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Stop playback and empty the queue",
	Args:  cobra.NoArgs,
	RunE:  simpleCommand(protocol.ActionClear),
}

// enqueueCmd represents the enqueue command
var enqueueCmd = &cobra.Command{
	Use:   "enqueue <file>",
	Short: "Add an mp3 file to the queue",
	Long: `Add an mp3 file to the end of the queue.

The path is resolved against the current directory before it is sent, since
the daemon runs in its own work directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnqueue,
}

// queueCmd represents the queue command
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List the current queue",
	Args:  cobra.NoArgs,
	RunE:  runQueue,
}

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent commands handled by the daemon",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("count", "n", 10, "Number of entries to show")
}

// send delivers line to the daemon. Non-2xx responses are returned as errors.
func send(cmd *cobra.Command, line string) (protocol.Response, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return protocol.Response{}, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	resp, err := protocol.Send(ctx, cfg.Socket, line)
	if err != nil {
		if daemon.IsUnavailable(err) {
			return protocol.Response{}, fmt.Errorf("%w (run 'muse start')", daemon.ErrDaemonNotRunning)
		}
		return protocol.Response{}, err
	}

	return resp, resp.Err()
}

// simpleCommand sends action and prints the daemon's answer
func simpleCommand(action string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		resp, err := send(cmd, action)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
		return nil
	}
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", args[0], err)
	}

	resp, err := send(cmd, protocol.Format(protocol.ActionEnqueue, path))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
	return nil
}

func runQueue(cmd *cobra.Command, args []string) error {
	resp, err := send(cmd, protocol.ActionQueue)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Text)
	if len(resp.Body) == 0 {
		return nil
	}

	// Leave room for the index column and table borders
	pathWidth := terminalWidth(out) - 14
	rows := make([][]string, len(resp.Body))
	for i, path := range resp.Body {
		rows[i] = []string{strconv.Itoa(i + 1), truncateLeft(path, pathWidth)}
	}

	fmt.Fprint(out, renderTable([]string{"#", "File"}, rows, []columnAlignment{alignRight, alignLeft}))
	fmt.Fprintln(out)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")
	if count <= 0 {
		return fmt.Errorf("invalid count %d (must be positive)", count)
	}

	resp, err := send(cmd, protocol.Format(protocol.ActionHistory, strconv.Itoa(count)))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Body) == 0 {
		fmt.Fprintln(out, "No history")
		return nil
	}

	messageWidth := terminalWidth(out) - 45
	rows := make([][]string, 0, len(resp.Body))
	for _, line := range resp.Body {
		entry, ok := parseHistoryLine(line)
		if !ok {
			continue
		}
		rows = append(rows, []string{
			entry.time,
			entry.action,
			entry.status,
			truncateRight(entry.message, messageWidth),
		})
	}

	fmt.Fprint(out, renderTable([]string{"Time", "Action", "Status", "Message"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
	fmt.Fprintln(out)
	return nil
}
