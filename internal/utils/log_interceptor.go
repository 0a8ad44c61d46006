// Package utils provides utility functions and types for the VibeFoundry daemon.
package utils

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"time"
)

// LogInterceptor numbers and timestamps each line written through it before
// handing it to the target writer. The daemon's file handler drops slog's
// own time attribute and relies on this prefix instead, so interleaved
// writers stay attributable and ordered in a shared log file.
type LogInterceptor struct {
	mu     sync.Mutex
	target io.Writer
	seq    uint64
	buf    bytes.Buffer // trailing partial line
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{target: target}
}

// Write buffers input and emits complete lines. A write without a trailing
// newline stays buffered until the next write or Close completes it.
func (i *LogInterceptor) Write(p []byte) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.buf.Write(p)
	for {
		raw := i.buf.Bytes()
		nl := bytes.IndexByte(raw, '\n')
		if nl < 0 {
			break
		}
		line := string(bytes.TrimRight(raw[:nl], "\r"))
		i.buf.Next(nl + 1)
		if err := i.writeLine(line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Close flushes an unterminated trailing line, if any.
func (i *LogInterceptor) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.buf.Len() == 0 {
		return nil
	}
	line := i.buf.String()
	i.buf.Reset()
	return i.writeLine(line)
}

func (i *LogInterceptor) writeLine(line string) error {
	i.seq++
	prefix := slog.Uint64("line", i.seq).String() + " " +
		slog.String("time", time.Now().Format(time.RFC3339)).String() + " "
	_, err := io.WriteString(i.target, prefix+line+"\n")
	return err
}
