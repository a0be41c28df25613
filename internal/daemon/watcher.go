package daemon

import (
	"context"

	"github.com/jfmyers9/muse/internal/audio"
	"github.com/rs/zerolog"
)

// TrackWatcher logs tracks as the sink finishes them
type TrackWatcher struct {
	events <-chan audio.TrackEvent
	logger zerolog.Logger
}

// NewTrackWatcher creates a watcher reading from events
func NewTrackWatcher(events <-chan audio.TrackEvent, logger zerolog.Logger) *TrackWatcher {
	return &TrackWatcher{
		events: events,
		logger: logger.With().Str("component", "watcher").Logger(),
	}
}

// Run logs events until ctx is cancelled
func (w *TrackWatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.events:
			w.handle(event)
		}
	}
}

func (w *TrackWatcher) handle(event audio.TrackEvent) {
	if event.Err != nil {
		w.logger.Warn().
			Err(event.Err).
			Str("track", event.Path).
			Msg("Track ended with error")
		return
	}

	w.logger.Info().
		Str("track", event.Path).
		Msg("Track finished")
}
