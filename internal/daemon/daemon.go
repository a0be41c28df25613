package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/jfmyers9/muse/internal/audio"
	"github.com/jfmyers9/muse/internal/config"
	"github.com/jfmyers9/muse/internal/history"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Daemon owns the work directory, the control socket and the single audio sink
type Daemon struct {
	config   *config.Config
	version  string
	device   audio.Device
	decoders map[string]audio.DecodeFunc
	logger   zerolog.Logger
}

// Option customizes a Daemon
type Option func(*Daemon)

// WithVersion sets the version reported in the run info file
func WithVersion(version string) Option {
	return func(d *Daemon) { d.version = version }
}

// WithDevice uses dev instead of opening the configured audio device
func WithDevice(dev audio.Device) Option {
	return func(d *Daemon) { d.device = dev }
}

// WithDecoder registers an extra decoder on the sink
func WithDecoder(ext string, fn audio.DecodeFunc) Option {
	return func(d *Daemon) { d.decoders[ext] = fn }
}

// New creates a daemon. logger receives bootstrap messages until the log file is open.
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) *Daemon {
	d := &Daemon{
		config:   cfg,
		version:  "dev",
		decoders: make(map[string]audio.DecodeFunc),
		logger:   logger.With().Str("component", "daemon").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run bootstraps the daemon and serves commands until a stop command, a shutdown
// signal, or cancellation of ctx. Every bootstrap failure is returned.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Second signal forces exit
		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	return d.run(ctx)
}

func (d *Daemon) run(ctx context.Context) error {
	cfg := d.config

	if err := PrepareWorkDir(cfg.WorkDir); err != nil {
		return err
	}

	lock, err := AcquireLock(cfg.LockFile())
	if err != nil {
		return err
	}
	defer func() {
		if err := ReleaseLock(lock); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to release lock")
		}
	}()

	ln, err := Listen(cfg.Socket)
	if err != nil {
		return err
	}
	defer func() {
		_ = ln.Close()
		_ = os.Remove(cfg.Socket)
	}()

	logFile := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}
	defer logFile.Close()

	logger := zerolog.New(logFile).
		Level(parseLevel(cfg.LogLevel)).
		With().
		Timestamp().
		Logger()

	logger.Info().
		Str("version", d.version).
		Int("pid", os.Getpid()).
		Str("work_dir", cfg.WorkDir).
		Str("socket", cfg.Socket).
		Msg("Starting muse daemon")

	journal, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer journal.Close()

	if cfg.HistoryRetention > 0 {
		if deleted, err := journal.Cleanup(ctx, cfg.HistoryRetention); err != nil {
			logger.Warn().Err(err).Msg("Failed to cleanup history")
		} else if deleted > 0 {
			logger.Debug().Int64("deleted", deleted).Msg("Removed old history")
		}
	}

	device, err := d.openDevice()
	if err != nil {
		return err
	}

	sink := audio.NewSink(device, beep.SampleRate(cfg.SampleRate))
	for ext, fn := range d.decoders {
		sink.RegisterDecoder(ext, fn)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close audio device")
		}
	}()

	info := RunInfo{
		PID:       os.Getpid(),
		Socket:    cfg.Socket,
		LogFile:   cfg.LogFile,
		HistoryDB: cfg.HistoryDB,
		StartedAt: time.Now(),
		Version:   d.version,
	}
	if err := WriteRunInfo(cfg.RunInfoFile(), info); err != nil {
		return fmt.Errorf("failed to write run info: %w", err)
	}
	defer func() { _ = RemoveRunInfo(cfg.RunInfoFile()) }()

	watchCtx, stopWatching := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = NewTrackWatcher(sink.Events(), logger).Run(watchCtx)
	}()

	server := NewServer(ServerConfig{
		MaxCommandBytes: cfg.MaxCommandBytes,
		ReadTimeout:     cfg.ReadTimeout,
	}, sink, journal, logger)

	serveErr := server.Serve(ctx, ln)

	stopWatching()
	wg.Wait()

	if serveErr != nil {
		logger.Error().Err(serveErr).Msg("Connection loop failed")
		return serveErr
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

func (d *Daemon) openDevice() (audio.Device, error) {
	if d.device != nil {
		return d.device, nil
	}

	switch d.config.AudioDevice {
	case config.DeviceNull:
		return audio.NewNullDevice(), nil
	default:
		dev, err := audio.OpenSpeaker(beep.SampleRate(d.config.SampleRate), d.config.Buffer)
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
}

// parseLevel maps a configured level name to a zerolog level, defaulting to info
func parseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
