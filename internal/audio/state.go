package audio

// PlayState represents the current playback state of the sink
type PlayState int

const (
	StateStopped PlayState = iota // Nothing queued
	StatePlaying                  // Head of the queue is playing
	StatePaused                   // Head of the queue is paused
)

// String returns a human-readable representation of the PlayState
func (s PlayState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the sink state
type Snapshot struct {
	State PlayState
	Queue []string // Paths, head first
}

// TrackEvent is emitted when a queued item has been played to the end
type TrackEvent struct {
	Path string
	Err  error // Streamer error, if playback ended because of one
}
