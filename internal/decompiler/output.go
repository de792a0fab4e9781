package decompiler

import (
	"bytes"
	"io"
	"sync"
)

// cappedOutput collects stdout and stderr against one shared byte budget.
// When the budget is exceeded onTrip fires once and further output is dropped,
// so the pipe readers keep draining until the process is gone.
type cappedOutput struct {
	mu      sync.Mutex
	limit   int64
	written int64
	tripped bool
	onTrip  func()

	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newCappedOutput(limit int64, onTrip func()) *cappedOutput {
	return &cappedOutput{limit: limit, onTrip: onTrip}
}

func (c *cappedOutput) Stdout() io.Writer { return &streamWriter{c: c, buf: &c.stdout} }
func (c *cappedOutput) Stderr() io.Writer { return &streamWriter{c: c, buf: &c.stderr} }

func (c *cappedOutput) StdoutString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stdout.String()
}

func (c *cappedOutput) StderrString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stderr.String()
}

// Tripped reports whether the limit was exceeded.
func (c *cappedOutput) Tripped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tripped
}

type streamWriter struct {
	c   *cappedOutput
	buf *bytes.Buffer
}

func (w *streamWriter) Write(p []byte) (int, error) {
	c := w.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tripped {
		return len(p), nil
	}
	remaining := c.limit - c.written
	if int64(len(p)) > remaining {
		w.buf.Write(p[:remaining])
		c.written = c.limit
		c.tripped = true
		if c.onTrip != nil {
			c.onTrip()
		}
		return len(p), nil
	}
	w.buf.Write(p)
	c.written += int64(len(p))
	return len(p), nil
}
