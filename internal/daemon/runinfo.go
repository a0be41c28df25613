package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunInfo describes a running daemon. It is written to the work directory after
// bootstrap and removed on shutdown.
type RunInfo struct {
	PID       int       `json:"pid"`
	Socket    string    `json:"socket"`
	LogFile   string    `json:"log_file"`
	HistoryDB string    `json:"history_db"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`
}

// Uptime returns how long the daemon has been running
func (r RunInfo) Uptime() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	return time.Since(r.StartedAt).Truncate(time.Second)
}

// WriteRunInfo saves info to path
func WriteRunInfo(path string, info RunInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), workDirMode); err != nil {
		return err
	}

	// Write atomically via temp file + rename
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// ReadRunInfo loads the run info file. A missing file wraps os.ErrNotExist.
func ReadRunInfo(path string) (RunInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunInfo{}, fmt.Errorf("failed to read run info: %w", err)
	}

	var info RunInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return RunInfo{}, fmt.Errorf("failed to parse run info %s: %w", path, err)
	}

	return info, nil
}

// RemoveRunInfo deletes the run info file, ignoring a missing one
func RemoveRunInfo(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
