// Source layout based on github.com/kvz/logstreamer (MIT), as adapted by
// the teacher's internal/logstreamer package: line-buffer arbitrary writes
// and emit one fully-formed, prefixed line at a time.
package progress

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// PrefixWriter buffers writes until a full line is available, then forwards
// "<prefix> <line>" to the underlying writer. Partial trailing lines are
// held until Close flushes them, mirroring the teacher's Logstreamer so a
// task's last, non-newline-terminated line of output is never dropped.
type PrefixWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	out    io.Writer
	prefix string
}

// NewPrefixWriter wraps out, prefixing every emitted line with prefix
// (typically "<package>:<task>").
func NewPrefixWriter(out io.Writer, prefix string) *PrefixWriter {
	return &PrefixWriter{out: out, prefix: prefix}
}

// Write implements io.Writer, emitting any complete lines found in p.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.buf.Write(p); err != nil {
		return 0, err
	}
	if err := w.emitCompleteLines(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close flushes any partial trailing line.
func (w *PrefixWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return nil
	}
	return w.emitLine(w.buf.String())
}

func (w *PrefixWriter) emitCompleteLines() error {
	for {
		line, err := w.buf.ReadString('\n')
		if len(line) > 0 {
			if strings.HasSuffix(line, "\n") {
				if emitErr := w.emitLine(line); emitErr != nil {
					return emitErr
				}
			} else {
				// Not a complete line yet; put it back for the next Write or Close.
				w.buf.WriteString(line)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (w *PrefixWriter) emitLine(line string) error {
	if line == "" {
		return nil
	}
	_, err := io.WriteString(w.out, w.prefix+" "+line)
	return err
}
