package scrape

import (
	"bytes"
	"strings"
)

// StreamBuffer accumulates decoded output for one stream and hands it back
// a line at a time. Chunks arrive with no line-boundary guarantee.
type StreamBuffer struct {
	data  []byte
	start int
}

// WriteString appends decoded text.
func (b *StreamBuffer) WriteString(s string) {
	if b.start > 0 {
		n := copy(b.data, b.data[b.start:])
		b.data = b.data[:n]
		b.start = 0
	}
	b.data = append(b.data, s...)
}

// FindLine returns the offset of the next line terminator, or -1 when only a
// partial line is buffered.
func (b *StreamBuffer) FindLine() int {
	return bytes.IndexByte(b.data[b.start:], '\n')
}

// Consume removes the first n bytes and the terminator that follows them,
// returning the line without the terminator. A trailing carriage return is
// dropped.
func (b *StreamBuffer) Consume(n int) string {
	if n < 0 || b.start+n >= len(b.data) {
		return b.Flush()
	}
	line := string(b.data[b.start : b.start+n])
	b.start += n + 1
	return strings.TrimSuffix(line, "\r")
}

// Flush removes and returns whatever is buffered.
func (b *StreamBuffer) Flush() string {
	rest := string(b.data[b.start:])
	b.data = b.data[:0]
	b.start = 0
	return strings.TrimSuffix(rest, "\r")
}

// Len returns the number of buffered bytes.
func (b *StreamBuffer) Len() int {
	return len(b.data) - b.start
}
