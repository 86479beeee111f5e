package scrape

import (
	"strings"

	"github.com/dshills/buildscan/internal/build/classify"
)

// MaximumReachedNote is appended to the post-context of the last reported
// event of a category whose quota was filled.
const MaximumReachedNote = "\nThe maximum number of reported warnings or errors has been reached!!!\n"

// BuildEvent is one error or warning found in build output.
type BuildEvent struct {
	// LogLine is the 1-based line of the build log the event was read from.
	LogLine int

	// Kind is classify.Error or classify.Warning.
	Kind classify.Kind

	// Text is the line as the build printed it.
	Text string

	// PreContext holds the regular lines that preceded the event.
	PreContext []string

	// PostContext holds the regular lines that followed the event.
	// PostContextWindow is the most lines it could have held.
	PostContext       []string
	PostContextWindow int

	// SourceFile and SourceLine locate the problem in the source tree.
	// SourceLine is 0 when unknown.
	SourceFile string
	SourceLine int

	RepeatCount int

	// MaximumReached marks the last event reported for a category whose
	// quota was filled.
	MaximumReached bool
}

// IsError reports whether the event is an error.
func (e *BuildEvent) IsError() bool {
	return e.Kind == classify.Error
}

// PreContextText returns the pre-context with each line newline terminated.
func (e *BuildEvent) PreContextText() string {
	if len(e.PreContext) == 0 {
		return ""
	}
	var b strings.Builder
	for _, line := range e.PreContext {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// PostContextText returns the post-context followed by MaximumReachedNote
// when the event carries the marker. Every line is newline terminated
// except one that fills the window.
func (e *BuildEvent) PostContextText() string {
	var b strings.Builder
	for i, line := range e.PostContext {
		b.WriteString(line)
		if i+1 < e.PostContextWindow {
			b.WriteByte('\n')
		}
	}
	if e.MaximumReached {
		b.WriteString(MaximumReachedNote)
	}
	return b.String()
}

// Clone returns a copy of the event that shares no slices with e.
func (e *BuildEvent) Clone() *BuildEvent {
	c := *e
	c.PreContext = append([]string(nil), e.PreContext...)
	c.PostContext = append([]string(nil), e.PostContext...)
	return &c
}
