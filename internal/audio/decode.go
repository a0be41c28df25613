package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
)

const extMP3 = ".mp3"

// ErrUnsupportedFormat is returned when no decoder is registered for a file extension
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// DecodeFunc decodes an opened file into a seekable stream.
// The returned streamer owns rc and closes it on Close.
type DecodeFunc func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

// DecodeError reports a file that could not be turned into a playable stream
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// defaultDecoders returns the decoders a new sink starts with. mp3 is the only
// supported format.
func defaultDecoders() map[string]DecodeFunc {
	return map[string]DecodeFunc{
		extMP3: mp3.Decode,
	}
}

// decodeFile opens path and decodes it with the decoder registered for its extension.
// All failures are returned as *DecodeError.
func decodeFile(path string, decoders map[string]DecodeFunc) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return nil, beep.Format{}, &DecodeError{Path: path, Err: ErrUnsupportedFormat}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, &DecodeError{Path: path, Err: err}
	}

	streamer, format, err := decode(f)
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, &DecodeError{Path: path, Err: err}
	}

	return streamer, format, nil
}
