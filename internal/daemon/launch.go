package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jfmyers9/muse/internal/protocol"
)

// ErrDaemonNotRunning indicates nothing is listening on the control socket
var ErrDaemonNotRunning = errors.New("daemon not running")

// readyPollInterval is how often the supervisor pings a starting daemon
const readyPollInterval = 100 * time.Millisecond

// LaunchOptions controls how the detached daemon is started
type LaunchOptions struct {
	ConfigPath string
	SocketPath string
	WorkDir    string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state
type StartResult struct {
	State    StartState
	Launched bool
}

// Launch starts a detached muse daemon process: new session, standard streams on
// the null device, working directory set to the work directory. The child is
// released and not waited for.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		abs, err := filepath.Abs(cfg)
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
		args = append(args, "--config", abs)
	}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		abs, err := filepath.Abs(socket)
		if err != nil {
			return fmt.Errorf("resolve socket path: %w", err)
		}
		args = append(args, "--socket", abs)
	}
	if opts.WorkDir != "" {
		args = append(args, "--work-dir", opts.WorkDir)
	}
	if opts.LogLevel != "" {
		args = append(args, "--log-level", opts.LogLevel)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	proc := exec.Command(executablePath, args...)
	proc.Stdin = devNull
	proc.Stdout = devNull
	proc.Stderr = devNull
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if opts.WorkDir != "" {
		if err := os.MkdirAll(opts.WorkDir, workDirMode); err != nil {
			return fmt.Errorf("failed to create work directory: %w", err)
		}
		proc.Dir = opts.WorkDir
	}

	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// Ping checks whether a daemon answers on socketPath
func Ping(ctx context.Context, socketPath string) error {
	resp, err := protocol.Send(ctx, socketPath, protocol.ActionPing)
	if err != nil {
		if IsUnavailable(err) {
			return fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
		}
		return err
	}
	return resp.Err()
}

// WaitReady polls the socket until the daemon answers or timeout elapses
func WaitReady(ctx context.Context, socketPath string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		pingCtx, pingCancel := context.WithTimeout(ctx, protocol.DefaultDialTimeout)
		lastErr = Ping(pingCtx, socketPath)
		pingCancel()
		if lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("daemon failed to start within %s: %w", timeout, lastErr)
		case <-ticker.C:
		}
	}
}

// EnsureStarted launches the daemon unless one already answers, then waits for it
func EnsureStarted(ctx context.Context, socketPath, executablePath string, opts LaunchOptions, timeout time.Duration) (StartResult, error) {
	if err := Ping(ctx, socketPath); err == nil {
		return StartResult{State: StartStateAlreadyRunning}, nil
	} else if !errors.Is(err, ErrDaemonNotRunning) {
		return StartResult{}, err
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}

	if err := WaitReady(ctx, socketPath, timeout); err != nil {
		return StartResult{}, err
	}

	return StartResult{State: StartStateStarted, Launched: true}, nil
}

// RequestStop asks the daemon to shut down and waits until the socket goes quiet
func RequestStop(ctx context.Context, socketPath string, timeout time.Duration) error {
	resp, err := protocol.Send(ctx, socketPath, protocol.ActionStop)
	if err != nil {
		if IsUnavailable(err) {
			return ErrDaemonNotRunning
		}
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	return WaitForShutdown(ctx, socketPath, timeout)
}

// WaitForShutdown waits for the daemon to stop answering on socketPath
func WaitForShutdown(ctx context.Context, socketPath string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		pingCtx, pingCancel := context.WithTimeout(ctx, protocol.DefaultDialTimeout)
		err := Ping(pingCtx, socketPath)
		pingCancel()
		if errors.Is(err, ErrDaemonNotRunning) {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("daemon did not stop within %s", timeout)
		case <-ticker.C:
		}
	}
}

// IsUnavailable reports whether err means nothing is listening on the socket
func IsUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
