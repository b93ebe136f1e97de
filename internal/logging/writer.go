package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Writer is an io.Writer that forwards subprocess output to slog, one record per line.
type Writer struct {
	logger *slog.Logger
	source string
	level  slog.Level

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewWriter constructs a Writer bound to the provided logger.
// source is attached to every record, e.g. "docker compose".
func NewWriter(logger *slog.Logger, source string) *Writer {
	return &Writer{logger: logger, source: source, level: slog.LevelInfo}
}

// WithLevel sets the level used for forwarded lines.
func (w *Writer) WithLevel(level Level) *Writer {
	w.level = slog.Level(level)
	return w
}

// Write buffers p and logs every complete line.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.emit(line)
	}
	return len(p), nil
}

// Flush logs any buffered partial line.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *Writer) emit(line string) {
	if w.logger == nil {
		return
	}
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	w.logger.Log(context.Background(), w.level, "command output", "source", w.source, "line", line)
}
