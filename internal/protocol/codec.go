package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

// DefaultMaxFrameSize bounds a single frame when no limit is configured.
const DefaultMaxFrameSize = 64 * 1024

const delimiter = '\n'

var (
	ErrMalformed      = errors.New("malformed frame")
	ErrUnexpectedType = errors.New("unexpected frame type")
	ErrFrameTooLarge  = errors.New("frame exceeds maximum size")
)

// Reader splits a stream into newline-delimited frames regardless of how the
// underlying reads are chunked.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader wraps r. maxFrame <= 0 selects DefaultMaxFrameSize.
func NewReader(r io.Reader, maxFrame int) *Reader {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	sc := bufio.NewScanner(r)
	initial := 4096
	if initial > maxFrame {
		initial = maxFrame
	}
	// Scanner needs room for the delimiter on top of the payload.
	sc.Buffer(make([]byte, 0, initial), maxFrame+1)
	return &Reader{sc: sc}
}

// Next returns the next non-empty frame payload. It returns io.EOF on a clean
// close and ErrFrameTooLarge when a frame overflows the limit. The returned
// slice is only valid until the following call.
func (r *Reader) Next() ([]byte, error) {
	for r.sc.Scan() {
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
	if err := r.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, ErrFrameTooLarge
		}
		return nil, err
	}
	return nil, io.EOF
}

// Writer appends the delimiter to every frame. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes payload followed by the delimiter in a single call.
func (w *Writer) WriteFrame(payload []byte) error {
	if bytes.IndexByte(payload, delimiter) >= 0 {
		return fmt.Errorf("%w: payload contains delimiter", ErrMalformed)
	}
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, payload...)
	buf = append(buf, delimiter)

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.w.Write(buf)
	return err
}

// WriteEnvelope encodes v and writes it as one frame.
func (w *Writer) WriteEnvelope(v any) error {
	payload, err := Encode(v)
	if err != nil {
		return err
	}
	return w.WriteFrame(payload)
}
