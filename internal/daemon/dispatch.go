package daemon

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jfmyers9/muse/internal/audio"
	"github.com/jfmyers9/muse/internal/protocol"
)

// defaultHistoryCount is used when `history` has no count argument
const defaultHistoryCount = 10

// Player is the playback surface commands act on. *audio.Sink implements it.
type Player interface {
	Play()
	Pause()
	Stop()
	Enqueue(path string) (int, error)
	Snapshot() audio.Snapshot
}

// outcome is the result of one command: the response sent back and the log line
type outcome struct {
	status protocol.Status
	text   string
	body   []string
	queued int  // queue length after enqueue
	stop   bool // shut the daemon down after responding
}

func (o outcome) response() protocol.Response {
	return protocol.Response{Status: o.status, Text: o.text, Body: o.body}
}

func ok(text string) outcome {
	return outcome{status: protocol.StatusOK, text: text}
}

func fail(status protocol.Status, text string) outcome {
	return outcome{status: status, text: text}
}

// dispatch applies one parsed command to the player
func (s *Server) dispatch(ctx context.Context, cmd protocol.Command) outcome {
	switch cmd.Action {
	case protocol.ActionPlay:
		s.player.Play()
		return ok("playing")

	case protocol.ActionPause:
		s.player.Pause()
		return ok("pausing")

	case protocol.ActionEnqueue:
		path := cmd.Tail()
		if path == "" {
			return fail(protocol.StatusBadRequest, "no song provided")
		}
		n, err := s.player.Enqueue(path)
		if err != nil {
			var decodeErr *audio.DecodeError
			if errors.As(err, &decodeErr) {
				return fail(protocol.StatusUnprocessable, err.Error())
			}
			return fail(protocol.StatusInternal, err.Error())
		}
		o := ok("enqueueing: " + cmd.Raw)
		o.queued = n
		return o

	case protocol.ActionClear:
		s.player.Stop()
		return ok("cleared")

	case protocol.ActionQueue:
		snap := s.player.Snapshot()
		o := ok(fmt.Sprintf("%s, %d queued", snap.State, len(snap.Queue)))
		o.body = snap.Queue
		return o

	case protocol.ActionHistory:
		return s.history(ctx, cmd)

	case protocol.ActionStop:
		o := ok("stopping")
		o.stop = true
		return o

	case protocol.ActionPing:
		return ok("pong")

	default:
		return fail(protocol.StatusBadRequest, "unknown command: "+cmd.Raw)
	}
}

// history lists recent journal entries as tab separated body lines
func (s *Server) history(ctx context.Context, cmd protocol.Command) outcome {
	if s.journal == nil {
		return fail(protocol.StatusInternal, "history unavailable")
	}

	count := defaultHistoryCount
	if arg, present := cmd.Arg(0); present {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return fail(protocol.StatusBadRequest, "invalid history count: "+arg)
		}
		count = n
	}

	entries, err := s.journal.Recent(ctx, count)
	if err != nil {
		return fail(protocol.StatusInternal, err.Error())
	}

	o := ok(fmt.Sprintf("%d entries", len(entries)))
	for _, e := range entries {
		o.body = append(o.body, fmt.Sprintf("%s\t%s\t%d\t%s",
			e.Time.Format(time.RFC3339), e.Action, e.Status, e.Message))
	}
	return o
}
