package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Status is the numeric code on the first response line
type Status int

const (
	StatusOK            Status = 200
	StatusBadRequest    Status = 400 // Empty, unknown, or incomplete command
	StatusUnprocessable Status = 422 // File could not be decoded
	StatusInternal      Status = 500
)

// Response is the daemon's answer to one command
type Response struct {
	Status Status
	Text   string
	Body   []string
}

// OK reports whether the response has a 2xx status
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Err returns a *StatusError for non-2xx responses and nil otherwise
func (r Response) Err() error {
	if r.OK() {
		return nil
	}
	return &StatusError{Status: r.Status, Text: r.Text}
}

// StatusError is a failed command as reported by the daemon
type StatusError struct {
	Status Status
	Text   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Text)
}

// WriteResponse writes r as a status line followed by body lines.
// Newlines inside Text or body lines are flattened to spaces.
func WriteResponse(w io.Writer, r Response) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d %s\n", r.Status, oneLine(r.Text)); err != nil {
		return err
	}
	for _, line := range r.Body {
		if _, err := fmt.Fprintln(bw, oneLine(line)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadResponse reads a status line and body lines until EOF
func ReadResponse(r io.Reader) (Response, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Response{}, fmt.Errorf("read status line: %w", err)
		}
		return Response{}, fmt.Errorf("read status line: %w", io.ErrUnexpectedEOF)
	}

	resp, err := parseStatusLine(scanner.Text())
	if err != nil {
		return Response{}, err
	}

	for scanner.Scan() {
		resp.Body = append(resp.Body, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return resp, fmt.Errorf("read body: %w", err)
	}

	return resp, nil
}

func parseStatusLine(line string) (Response, error) {
	code, text, _ := strings.Cut(line, " ")
	status, err := strconv.Atoi(code)
	if err != nil {
		return Response{}, fmt.Errorf("invalid status line %q", line)
	}
	return Response{Status: Status(status), Text: text}, nil
}

func oneLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
