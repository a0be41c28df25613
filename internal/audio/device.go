package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Device is an audio output that pulls samples from a streamer.
// Lock and Unlock guard state shared with the goroutine that pulls samples.
type Device interface {
	Play(s beep.Streamer)
	Lock()
	Unlock()
	Close() error
}

// SpeakerDevice plays through the system default output using beep's speaker package.
// The speaker package is process-global, so only one SpeakerDevice may be open.
type SpeakerDevice struct{}

// OpenSpeaker initializes the default output device at the given sample rate
func OpenSpeaker(rate beep.SampleRate, buffer time.Duration) (*SpeakerDevice, error) {
	if err := speaker.Init(rate, rate.N(buffer)); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}
	return &SpeakerDevice{}, nil
}

func (d *SpeakerDevice) Play(s beep.Streamer) { speaker.Play(s) }
func (d *SpeakerDevice) Lock()                { speaker.Lock() }
func (d *SpeakerDevice) Unlock()              { speaker.Unlock() }

// Close stops playback and releases the output device
func (d *SpeakerDevice) Close() error {
	speaker.Clear()
	speaker.Close()
	return nil
}

// NullDevice discards audio. Nothing pulls samples on its own; Pull advances
// playback by hand. Used for headless daemons and tests.
type NullDevice struct {
	mu        sync.Mutex
	streamers []beep.Streamer
	closed    bool
}

// NewNullDevice creates a device with no output
func NewNullDevice() *NullDevice {
	return &NullDevice{}
}

func (d *NullDevice) Play(s beep.Streamer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.streamers = append(d.streamers, s)
}

func (d *NullDevice) Lock()   { d.mu.Lock() }
func (d *NullDevice) Unlock() { d.mu.Unlock() }

// Pull streams n samples from every attached streamer, the way a real device
// would on each buffer refill.
func (d *NullDevice) Pull(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	buf := make([][2]float64, n)
	for _, s := range d.streamers {
		s.Stream(buf)
	}
}

func (d *NullDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.streamers = nil
	return nil
}
