package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// JSONLWriter writes steps as JSON Lines, one object per line.
// It is safe for concurrent use.
type JSONLWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	buf    *bufio.Writer
	closer io.Closer // set only when the writer owns the file
	closed bool
	count  uint64
}

// ErrWriterClosed is returned when WriteStep is called after Close.
var ErrWriterClosed = errors.New("jsonl trace writer is closed")

func newJSONLWriter(w io.Writer, size int, closer io.Closer) *JSONLWriter {
	buf := bufio.NewWriterSize(w, size)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc, buf: buf, closer: closer}
}

// NewJSONLWriter wraps w. Close flushes but does not close w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return newJSONLWriter(w, 64*1024, nil)
}

// NewJSONLWriterFile creates (or truncates) path. Close flushes and closes the file.
func NewJSONLWriterFile(path string) (*JSONLWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return newJSONLWriter(f, 64*1024, f), nil
}

func (w *JSONLWriter) WriteStep(step *Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if err := w.enc.Encode(step); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count is the number of steps written so far.
func (w *JSONLWriter) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

func (w *JSONLWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	return w.buf.Flush()
}

// Close flushes buffered data and closes the file if the writer owns it.
// Closing twice is a no-op.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		if w.closer != nil {
			_ = w.closer.Close()
		}
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// ReadJSONL decodes a JSON Lines trace.
func ReadJSONL(r io.Reader) ([]*Step, error) {
	var steps []*Step
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var s Step
		if err := json.Unmarshal(sc.Bytes(), &s); err != nil {
			return nil, fmt.Errorf("trace line %d: %w", line, err)
		}
		steps = append(steps, &s)
	}
	return steps, sc.Err()
}

// ReadJSONLFile decodes the trace at path.
func ReadJSONLFile(path string) ([]*Step, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSONL(f)
}
