package scrape

import (
	"fmt"
	"io"
	"sync"

	"github.com/dshills/buildscan/internal/build/classify"
)

const (
	// TickBytes is the amount of output each progress glyph stands for.
	TickBytes = 1024

	// TicksPerLine is the number of glyphs printed before a size line.
	TicksPerLine = 50
)

// Progress draws the live output indicator: one glyph per TickBytes of
// output, '!' when an error was seen since the last glyph, '*' for a
// warning and '.' otherwise.
//
// Progress is safe for concurrent use; a nil *Progress discards everything.
type Progress struct {
	mu    sync.Mutex
	w     io.Writer
	size  int64
	ticks int64
	glyph byte
}

// NewProgress creates an indicator writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w, glyph: '.'}
}

// Begin prints the legend. Launcher builds do not mark errors or warnings
// in the output, so their legend omits the glyph key.
func (p *Progress) Begin(launcher bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "   Each symbol represents %d bytes of output.\n", TickBytes)
	if !launcher {
		fmt.Fprint(p.w, "   '!' represents an error and '*' a warning.\n")
	}
	fmt.Fprint(p.w, "    ")
}

// Mark records that a line of kind was seen. The most recent mark decides
// the next glyph.
func (p *Progress) Mark(kind classify.Kind) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch kind {
	case classify.Error:
		p.glyph = '!'
	case classify.Warning:
		p.glyph = '*'
	}
}

// Add accounts for n bytes of output and prints any glyphs now due.
func (p *Progress) Add(n int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.size += int64(n)
	printed := false
	for p.size > p.ticks*TickBytes {
		p.ticks++
		fmt.Fprintf(p.w, "%c", p.glyph)
		printed = true
		if p.ticks%TicksPerLine == 0 {
			fmt.Fprintf(p.w, "  Size: %dK\n    ", p.kilobytes())
		}
	}
	if printed {
		p.glyph = '.'
	}
}

// Finish prints the total output size.
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, " Size of output: %dK\n", p.kilobytes())
}

// Size returns the number of bytes accounted for.
func (p *Progress) Size() int64 {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

func (p *Progress) kilobytes() int64 {
	return (p.size + TickBytes/2) / TickBytes
}
