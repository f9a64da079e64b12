package server

import (
	"bytes"
	"sync"

	"go.uber.org/zap"
)

// maxOutputLines is how many lines of child output are kept per server
const maxOutputLines = 200

// maxLineBytes caps an unterminated line; longer runs are split
const maxLineBytes = 4096

// lineBuffer keeps the last lines written by a child process and logs each
// complete line at debug level
type lineBuffer struct {
	mu      sync.Mutex
	lines   []string
	partial []byte
	limit   int
	logger  *zap.Logger
}

func newLineBuffer(limit int, logger *zap.Logger) *lineBuffer {
	return &lineBuffer{limit: limit, logger: logger}
}

// Write implements io.Writer
func (b *lineBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := append(b.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		b.push(string(bytes.TrimRight(data[:i], "\r")))
		data = data[i+1:]
	}
	for len(data) >= maxLineBytes {
		b.push(string(data[:maxLineBytes]))
		data = data[maxLineBytes:]
	}
	b.partial = append([]byte(nil), data...)
	return len(p), nil
}

func (b *lineBuffer) push(line string) {
	b.logger.Debug("server output", zap.String("line", line))
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.limit; over > 0 {
		b.lines = append([]string(nil), b.lines[over:]...)
	}
}

// Lines returns the buffered lines, including an unterminated trailing line
func (b *lineBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := append([]string(nil), b.lines...)
	if len(b.partial) > 0 {
		out = append(out, string(b.partial))
	}
	if len(out) > b.limit {
		out = out[len(out)-b.limit:]
	}
	return out
}

// Last returns the most recent non-empty line, or ""
func (b *lineBuffer) Last() string {
	lines := b.Lines()
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := bytes.TrimSpace([]byte(lines[i])); len(trimmed) > 0 {
			return string(trimmed)
		}
	}
	return ""
}
