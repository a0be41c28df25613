package audio

import (
	"fmt"
	"strings"

	"github.com/gopxl/beep/v2"
)

// resampleQuality is passed to beep.Resample when a file's rate differs from the device
const resampleQuality = 4

// item bundles the resources for one queued file
type item struct {
	path     string
	source   beep.StreamSeekCloser
	streamer beep.Streamer // source, resampled to the sink rate if needed
}

func (it *item) close() {
	if it.source != nil {
		_ = it.source.Close()
	}
}

// Sink is a play queue attached to a single output device. The device pulls
// samples from it; queued files play back to back. An empty or paused sink
// produces silence.
//
// All mutable state is guarded by the device lock, which the device also holds
// while calling Stream.
type Sink struct {
	device   Device
	rate     beep.SampleRate
	decoders map[string]DecodeFunc

	items  []*item
	paused bool
	events chan TrackEvent
}

// NewSink creates a sink streaming at rate and attaches it to device
func NewSink(device Device, rate beep.SampleRate) *Sink {
	s := &Sink{
		device:   device,
		rate:     rate,
		decoders: defaultDecoders(),
		events:   make(chan TrackEvent, 16),
	}
	device.Play(s)
	return s
}

// RegisterDecoder sets the decoder used for files with extension ext (".mp3")
func (s *Sink) RegisterDecoder(ext string, fn DecodeFunc) {
	s.device.Lock()
	defer s.device.Unlock()
	s.decoders[strings.ToLower(ext)] = fn
}

// Events returns finished-track notifications. Events are dropped when nobody reads them.
func (s *Sink) Events() <-chan TrackEvent {
	return s.events
}

// Play resumes playback. No-op when nothing is queued.
func (s *Sink) Play() {
	s.device.Lock()
	defer s.device.Unlock()
	s.paused = false
}

// Pause suspends playback at the current position
func (s *Sink) Pause() {
	s.device.Lock()
	defer s.device.Unlock()
	s.paused = true
}

// Stop halts playback and discards every queued item
func (s *Sink) Stop() {
	s.device.Lock()
	items := s.items
	s.items = nil
	s.device.Unlock()

	for _, it := range items {
		it.close()
	}
}

// Enqueue decodes path and appends it to the play queue, returning the new queue length.
// Decoding happens outside the device lock so playback is not interrupted.
func (s *Sink) Enqueue(path string) (int, error) {
	s.device.Lock()
	decoders := make(map[string]DecodeFunc, len(s.decoders))
	for ext, fn := range s.decoders {
		decoders[ext] = fn
	}
	s.device.Unlock()

	source, format, err := decodeFile(path, decoders)
	if err != nil {
		return 0, err
	}

	it := &item{path: path, source: source, streamer: source}
	if format.SampleRate != 0 && format.SampleRate != s.rate {
		it.streamer = beep.Resample(resampleQuality, format.SampleRate, s.rate, source)
	}

	s.device.Lock()
	defer s.device.Unlock()
	s.items = append(s.items, it)
	return len(s.items), nil
}

// Len returns the number of queued items, including the one playing
func (s *Sink) Len() int {
	s.device.Lock()
	defer s.device.Unlock()
	return len(s.items)
}

// State returns the current playback state
func (s *Sink) State() PlayState {
	s.device.Lock()
	defer s.device.Unlock()
	return s.stateLocked()
}

func (s *Sink) stateLocked() PlayState {
	switch {
	case len(s.items) == 0:
		return StateStopped
	case s.paused:
		return StatePaused
	default:
		return StatePlaying
	}
}

// Snapshot returns the state and queued paths
func (s *Sink) Snapshot() Snapshot {
	s.device.Lock()
	defer s.device.Unlock()

	queue := make([]string, len(s.items))
	for i, it := range s.items {
		queue[i] = it.path
	}
	return Snapshot{State: s.stateLocked(), Queue: queue}
}

// Stream implements beep.Streamer. Called by the device with its lock held.
func (s *Sink) Stream(samples [][2]float64) (int, bool) {
	filled := 0
	for filled < len(samples) {
		if s.paused || len(s.items) == 0 {
			clear(samples[filled:])
			break
		}

		head := s.items[0]
		n, ok := head.streamer.Stream(samples[filled:])
		filled += n
		if !ok || n == 0 {
			s.finishHead()
		}
	}
	return len(samples), true
}

// Err implements beep.Streamer
func (s *Sink) Err() error {
	return nil
}

// finishHead drops the exhausted head item. Must be called with the device lock held.
func (s *Sink) finishHead() {
	head := s.items[0]
	s.items[0] = nil
	s.items = s.items[1:]

	event := TrackEvent{Path: head.path}
	if err := head.streamer.Err(); err != nil {
		event.Err = fmt.Errorf("stream %s: %w", head.path, err)
	}
	head.close()

	select {
	case s.events <- event:
	default:
	}
}

// Close discards the queue and releases the device
func (s *Sink) Close() error {
	s.Stop()
	return s.device.Close()
}
