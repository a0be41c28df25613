package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		action  string
		args    []string
		raw     string
		wantErr error
	}{
		{
			name:   "single token",
			input:  "play",
			action: "play",
			args:   []string{},
			raw:    "play",
		},
		{
			name:   "action with argument",
			input:  "enqueue somefile.mp3",
			action: "enqueue",
			args:   []string{"somefile.mp3"},
			raw:    "enqueue somefile.mp3",
		},
		{
			name:   "surrounding whitespace and newline",
			input:  "  pause \n",
			action: "pause",
			args:   []string{},
			raw:    "pause",
		},
		{
			name:   "tabs and repeated spaces",
			input:  "enqueue\t a.mp3   b.mp3",
			action: "enqueue",
			args:   []string{"a.mp3", "b.mp3"},
			raw:    "enqueue\t a.mp3   b.mp3",
		},
		{
			name:   "unknown action still parses",
			input:  "dance",
			action: "dance",
			args:   []string{},
			raw:    "dance",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: ErrNoCommand,
		},
		{
			name:    "whitespace only",
			input:   " \t\n",
			wantErr: ErrNoCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			if cmd.Action != tt.action {
				t.Errorf("Action = %q, want %q", cmd.Action, tt.action)
			}
			if !reflect.DeepEqual(cmd.Args, tt.args) {
				t.Errorf("Args = %q, want %q", cmd.Args, tt.args)
			}
			if cmd.Raw != tt.raw {
				t.Errorf("Raw = %q, want %q", cmd.Raw, tt.raw)
			}
		})
	}
}

func TestCommandArgAndTail(t *testing.T) {
	cmd, err := Parse("enqueue /music/01 Psycho CEO.mp3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if arg, ok := cmd.Arg(0); !ok || arg != "/music/01" {
		t.Errorf("Arg(0) = (%q, %v), want (\"/music/01\", true)", arg, ok)
	}
	if _, ok := cmd.Arg(5); ok {
		t.Error("Arg(5) reported present")
	}
	if _, ok := cmd.Arg(-1); ok {
		t.Error("Arg(-1) reported present")
	}
	if got := cmd.Tail(); got != "/music/01 Psycho CEO.mp3" {
		t.Errorf("Tail() = %q, want path with spaces preserved", got)
	}

	bare, _ := Parse("play")
	if got := bare.Tail(); got != "" {
		t.Errorf("Tail() of bare action = %q, want empty", got)
	}
}

func TestFormat(t *testing.T) {
	if got := Format(ActionPlay); got != "play" {
		t.Errorf("Format(play) = %q", got)
	}
	if got := Format(ActionEnqueue, "/a b.mp3"); got != "enqueue /a b.mp3" {
		t.Errorf("Format(enqueue) = %q", got)
	}
}

func TestWriteReadResponse(t *testing.T) {
	var buf bytes.Buffer
	resp := Response{
		Status: StatusOK,
		Text:   "playing, 2 queued",
		Body:   []string{"/music/a.mp3", "/music/b c.mp3"},
	}
	if err := WriteResponse(&buf, resp); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}

	want := "200 playing, 2 queued\n/music/a.mp3\n/music/b c.mp3\n"
	if buf.String() != want {
		t.Errorf("wire format = %q, want %q", buf.String(), want)
	}

	got, err := ReadResponse(&buf)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if !reflect.DeepEqual(got, resp) {
		t.Errorf("ReadResponse = %+v, want %+v", got, resp)
	}
}

func TestWriteResponseFlattensNewlines(t *testing.T) {
	var buf bytes.Buffer
	resp := Response{Status: StatusBadRequest, Text: "unknown command: a\nb"}
	if err := WriteResponse(&buf, resp); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	if buf.String() != "400 unknown command: a b\n" {
		t.Errorf("wire format = %q", buf.String())
	}
}

func TestReadResponseErrors(t *testing.T) {
	if _, err := ReadResponse(strings.NewReader("")); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("empty input error = %v, want io.ErrUnexpectedEOF", err)
	}
	if _, err := ReadResponse(strings.NewReader("hello world\n")); err == nil {
		t.Error("expected error for non-numeric status")
	}
}

func TestResponseErr(t *testing.T) {
	if err := (Response{Status: StatusOK, Text: "playing"}).Err(); err != nil {
		t.Errorf("Err() on 200 = %v, want nil", err)
	}

	err := Response{Status: StatusUnprocessable, Text: "decode x.flac: unsupported audio format"}.Err()
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Err() = %T, want *StatusError", err)
	}
	if statusErr.Status != StatusUnprocessable {
		t.Errorf("Status = %d, want 422", statusErr.Status)
	}
	if !strings.Contains(err.Error(), "unsupported audio format") {
		t.Errorf("Error() = %q, missing text", err.Error())
	}
}

func TestSend(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "t.sock")
	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Reads until the client closes its write side
		data, _ := io.ReadAll(conn)
		received <- string(data)
		_ = WriteResponse(conn, Response{Status: StatusOK, Text: "pausing"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := Send(ctx, socket, "pause")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := <-received; got != "pause" {
		t.Errorf("server received %q, want %q", got, "pause")
	}
	if resp.Status != StatusOK || resp.Text != "pausing" {
		t.Errorf("response = %+v", resp)
	}
}

func TestSendNoDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")

	_, err := Send(context.Background(), socket, "play")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Send error = %v, want os.ErrNotExist", err)
	}
}
