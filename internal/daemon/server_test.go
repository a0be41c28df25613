package daemon

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/jfmyers9/muse/internal/audio"
	"github.com/jfmyers9/muse/internal/history"
	"github.com/jfmyers9/muse/internal/protocol"
	"github.com/rs/zerolog"
)

// silentStream is a decoded file that never needs real audio
type silentStream struct {
	rc io.ReadCloser
}

func (s *silentStream) Stream(samples [][2]float64) (int, bool) {
	clear(samples)
	return len(samples), true
}
func (s *silentStream) Err() error       { return nil }
func (s *silentStream) Len() int         { return 44100 }
func (s *silentStream) Position() int    { return 0 }
func (s *silentStream) Seek(p int) error { return nil }
func (s *silentStream) Close() error     { return s.rc.Close() }

func silentDecoder(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	return &silentStream{rc: rc}, beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}, nil
}

// syncBuffer collects log output written from the server goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testServer struct {
	socket  string
	sink    *audio.Sink
	journal *history.Journal
	logs    *syncBuffer
	cancel  context.CancelFunc
	done    chan error
}

func startServer(t *testing.T, cfg ServerConfig) *testServer {
	t.Helper()

	sink := audio.NewSink(audio.NewNullDevice(), 44100)
	sink.RegisterDecoder(".mp3", silentDecoder)
	return startServerWithSink(t, cfg, sink)
}

// startServerWithSink serves commands against sink, which is closed on cleanup
func startServerWithSink(t *testing.T, cfg ServerConfig, sink *audio.Sink) *testServer {
	t.Helper()
	t.Cleanup(func() { _ = sink.Close() })

	journal, err := history.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })

	socket := filepath.Join(t.TempDir(), "muse.socket")
	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	logs := &syncBuffer{}
	logger := zerolog.New(logs).Level(zerolog.DebugLevel)
	server := NewServer(cfg, sink, journal, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, ln)
	}()

	ts := &testServer{socket: socket, sink: sink, journal: journal, logs: logs, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ts
}

func (ts *testServer) send(t *testing.T, line string) protocol.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := protocol.Send(ctx, ts.socket, line)
	if err != nil {
		t.Fatalf("Send(%q): %v", line, err)
	}
	return resp
}

func writeSong(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("id3"), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestServerScenarios(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeSong(t, dir, "somefile.mp3")
	writeSong(t, dir, "song.flac")

	ts := startServer(t, ServerConfig{})

	tests := []struct {
		name   string
		line   string
		status protocol.Status
		text   string
		queued int
	}{
		{name: "play on empty sink", line: "play", status: protocol.StatusOK, text: "playing", queued: 0},
		{name: "pause on empty sink", line: "pause", status: protocol.StatusOK, text: "pausing", queued: 0},
		{name: "enqueue mp3", line: "enqueue somefile.mp3", status: protocol.StatusOK, text: "enqueueing: enqueue somefile.mp3", queued: 1},
		{name: "unknown command", line: "dance", status: protocol.StatusBadRequest, text: "unknown command: dance", queued: 1},
		{name: "empty input", line: "", status: protocol.StatusBadRequest, text: "no command provided", queued: 1},
		{name: "whitespace input", line: "  \n", status: protocol.StatusBadRequest, text: "no command provided", queued: 1},
		{name: "enqueue without path", line: "enqueue", status: protocol.StatusBadRequest, text: "no song provided", queued: 1},
		{name: "unsupported format", line: "enqueue song.flac", status: protocol.StatusUnprocessable, text: "decode song.flac: unsupported audio format", queued: 1},
		{name: "missing file", line: "enqueue missing.mp3", status: protocol.StatusUnprocessable, queued: 1},
		{name: "clear", line: "clear", status: protocol.StatusOK, text: "cleared", queued: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.send(t, tt.line)
			if resp.Status != tt.status {
				t.Errorf("status = %d, want %d (text %q)", resp.Status, tt.status, resp.Text)
			}
			if tt.text != "" && resp.Text != tt.text {
				t.Errorf("text = %q, want %q", resp.Text, tt.text)
			}
			if got := ts.sink.Len(); got != tt.queued {
				t.Errorf("queue length = %d, want %d", got, tt.queued)
			}
			if tt.text != "" && !strings.Contains(ts.logs.String(), `"message":"`+tt.text+`"`) {
				t.Errorf("log missing %q:\n%s", tt.text, ts.logs.String())
			}
		})
	}
}

func TestServerDefaultDecoderRejectsNonAudio(t *testing.T) {
	dir := t.TempDir()
	fake := writeSong(t, dir, "x.mp3")

	ts := startServerWithSink(t, ServerConfig{}, audio.NewSink(audio.NewNullDevice(), 44100))

	resp := ts.send(t, protocol.Format(protocol.ActionEnqueue, fake))
	if resp.Status != protocol.StatusUnprocessable {
		t.Errorf("status = %d, want 422 (text %q)", resp.Status, resp.Text)
	}
	if !strings.HasPrefix(resp.Text, "decode "+fake+": ") {
		t.Errorf("text = %q, want a decode error for %s", resp.Text, fake)
	}
	if strings.Contains(resp.Text, "unsupported audio format") {
		t.Errorf("text = %q, mp3 must reach the decoder", resp.Text)
	}
	if got := ts.sink.Len(); got != 0 {
		t.Errorf("queue length = %d, want 0", got)
	}

	if resp := ts.send(t, "ping"); resp.Text != "pong" {
		t.Errorf("ping after decode failure = %+v", resp)
	}
}

func TestServerLogFields(t *testing.T) {
	ts := startServer(t, ServerConfig{})

	ts.send(t, "play")
	ts.send(t, "dance")

	logs := ts.logs.String()
	for _, want := range []string{
		`"level":"info"`,
		`"action":"play"`,
		`"status":200`,
		`"level":"warn"`,
		`"action":"dance"`,
		`"status":400`,
		`"conn":"`,
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("log missing %s:\n%s", want, logs)
		}
	}
}

func TestServerAppliesCommandsInOrder(t *testing.T) {
	dir := t.TempDir()
	first := writeSong(t, dir, "01 first.mp3")
	second := writeSong(t, dir, "02 second.mp3")

	ts := startServer(t, ServerConfig{})

	ts.send(t, protocol.Format(protocol.ActionEnqueue, first))
	ts.send(t, protocol.Format(protocol.ActionEnqueue, second))

	resp := ts.send(t, "queue")
	if resp.Text != "playing, 2 queued" {
		t.Errorf("queue text = %q, want %q", resp.Text, "playing, 2 queued")
	}
	if len(resp.Body) != 2 || resp.Body[0] != first || resp.Body[1] != second {
		t.Errorf("queue body = %q, want [%q %q]", resp.Body, first, second)
	}

	ts.send(t, "pause")
	if resp := ts.send(t, "queue"); resp.Text != "paused, 2 queued" {
		t.Errorf("queue text after pause = %q", resp.Text)
	}
}

func TestServerHistory(t *testing.T) {
	ts := startServer(t, ServerConfig{})

	ts.send(t, "play")
	ts.send(t, "ping")
	ts.send(t, "dance")
	ts.send(t, "pause")

	resp := ts.send(t, "history 2")
	if resp.Status != protocol.StatusOK {
		t.Fatalf("history status = %d (%s)", resp.Status, resp.Text)
	}
	if len(resp.Body) != 2 {
		t.Fatalf("history body = %q, want 2 lines", resp.Body)
	}
	if fields := strings.Split(resp.Body[0], "\t"); len(fields) != 4 || fields[1] != "dance" || fields[2] != "400" {
		t.Errorf("first history line = %q", resp.Body[0])
	}
	if fields := strings.Split(resp.Body[1], "\t"); len(fields) != 4 || fields[3] != "pausing" {
		t.Errorf("second history line = %q", resp.Body[1])
	}

	count, err := ts.journal.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	// play, dance, pause and the history request itself; ping is not recorded
	if count != 4 {
		t.Errorf("journal count = %d, want 4", count)
	}

	if resp := ts.send(t, "history zero"); resp.Status != protocol.StatusBadRequest {
		t.Errorf("invalid count status = %d, want 400", resp.Status)
	}
}

func TestServerStop(t *testing.T) {
	ts := startServer(t, ServerConfig{})

	resp := ts.send(t, "stop")
	if resp.Status != protocol.StatusOK || resp.Text != "stopping" {
		t.Errorf("stop response = %+v", resp)
	}

	select {
	case err := <-ts.done:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
		ts.done <- nil // for cleanup
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerCancel(t *testing.T) {
	ts := startServer(t, ServerConfig{})
	ts.send(t, "ping")

	ts.cancel()
	select {
	case err := <-ts.done:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
		ts.done <- nil
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestServerCommandTooLong(t *testing.T) {
	ts := startServer(t, ServerConfig{MaxCommandBytes: 16})

	resp := ts.send(t, "enqueue /a/very/long/path/to/a/song.mp3")
	if resp.Status != protocol.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.Status)
	}
	if !strings.Contains(resp.Text, "command too long") {
		t.Errorf("text = %q", resp.Text)
	}

	// The loop keeps serving
	if resp := ts.send(t, "ping"); resp.Text != "pong" {
		t.Errorf("ping after rejected command = %+v", resp)
	}
}

func TestServerReadTimeout(t *testing.T) {
	ts := startServer(t, ServerConfig{ReadTimeout: 100 * time.Millisecond})

	// A client that never closes its write side is cut off
	conn, err := net.Dial("unix", ts.socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("play")); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp, err := protocol.ReadResponse(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.Status != protocol.StatusInternal {
		t.Errorf("status = %d, want 500", resp.Status)
	}

	if resp := ts.send(t, "ping"); resp.Text != "pong" {
		t.Errorf("ping after timeout = %+v", resp)
	}
}
