// Package scrape turns decoded build output into a sequence of build
// events.
//
// A Scraper owns the state of one build run: the line counter shared by
// both output streams, the error and warning totals, the quota flags, and
// the events found so far. Each stream gets its own Stream, which buffers
// partial lines so interleaved chunks never tear a line apart.
//
//	s := scrape.New(classifier, scrape.DefaultOptions())
//	stdout, stderr := s.Stream(), s.Stream()
//	// feed decoded chunks, then:
//	stdout.End()
//	stderr.End()
//	events := s.State().Events
//
// A Scraper is driven from a single goroutine.
package scrape

import (
	"io"
	"log/slog"

	"github.com/dshills/buildscan/internal/build/classify"
)

// Options holds the quotas and context sizes for a run.
type Options struct {
	// MaxErrors and MaxWarnings cap how many events of each kind are
	// recorded. Once a cap is reached the kind is no longer evaluated.
	MaxErrors   int
	MaxWarnings int

	// MaxPreContext and MaxPostContext bound the context kept around
	// each event.
	MaxPreContext  int
	MaxPostContext int
}

// DefaultOptions returns the standard quotas and context sizes.
func DefaultOptions() Options {
	return Options{
		MaxErrors:      50,
		MaxWarnings:    50,
		MaxPreContext:  10,
		MaxPostContext: 10,
	}
}

// RunState is the mutable state of one build run.
type RunState struct {
	TotalErrors   int
	TotalWarnings int

	ErrorQuotaReached   bool
	WarningQuotaReached bool

	// Lines counts complete lines processed across both streams.
	Lines int

	// OutputBytes counts decoded output across both streams.
	OutputBytes int64

	// Events holds every recorded event in the order found.
	Events []*BuildEvent
}

// Scraper classifies output lines and records events for one run.
type Scraper struct {
	classifier classify.LineClassifier
	opts       Options
	state      RunState
	context    *ContextTracker
	progress   *Progress
	tee        io.Writer
	logger     *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithProgress draws progress for the processed output.
func WithProgress(p *Progress) Option {
	return func(s *Scraper) {
		s.progress = p
	}
}

// WithTee copies every decoded chunk to w, typically the raw build log.
func WithTee(w io.Writer) Option {
	return func(s *Scraper) {
		s.tee = w
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scraper for one run.
func New(c classify.LineClassifier, opts Options, options ...Option) *Scraper {
	s := &Scraper{
		classifier: c,
		opts:       opts,
		context:    NewContextTracker(opts.MaxPreContext, opts.MaxPostContext),
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// State returns the run state. It must not be modified while streams are
// still being fed.
func (s *Scraper) State() *RunState {
	return &s.state
}

// Stream returns a new line feed with its own buffer.
func (s *Scraper) Stream() *Stream {
	return &Stream{s: s}
}

// AddEvent records an event that did not come from output, such as a
// failure to start the build. It is counted against the totals and placed
// at log line 1.
func (s *Scraper) AddEvent(kind classify.Kind, text string) *BuildEvent {
	ev := &BuildEvent{LogLine: 1, Kind: kind, Text: text}
	s.count(kind)
	s.state.Events = append(s.state.Events, ev)
	return ev
}

func (s *Scraper) count(kind classify.Kind) {
	switch kind {
	case classify.Error:
		s.state.TotalErrors++
	case classify.Warning:
		s.state.TotalWarnings++
	}
	s.progress.Mark(kind)
}

func (s *Scraper) updateQuota() {
	if s.state.TotalWarnings >= s.opts.MaxWarnings {
		s.state.WarningQuotaReached = true
	}
	if s.state.TotalErrors >= s.opts.MaxErrors {
		s.state.ErrorQuotaReached = true
	}
}

func (s *Scraper) processLine(line string) {
	s.updateQuota()

	kind := s.classifier.Classify(line, classify.Quota{
		ErrorsOpen:   !s.state.ErrorQuotaReached,
		WarningsOpen: !s.state.WarningQuotaReached,
	})

	switch kind {
	case classify.Error, classify.Warning:
		s.count(kind)
		ev := &BuildEvent{LogLine: s.state.Lines + 1, Kind: kind, Text: line}
		s.context.Begin(ev)
		s.state.Events = append(s.state.Events, ev)
	default:
		s.context.Regular(line)
	}
	s.state.Lines++

	s.updateQuota()
}

func (s *Scraper) write(text string) {
	s.state.OutputBytes += int64(len(text))
	if s.tee == nil {
		return
	}
	if _, err := io.WriteString(s.tee, text); err != nil {
		s.logger.Warn("raw build log write failed; no longer copying output", "error", err)
		s.tee = nil
	}
}

// Stream is the line feed for one output stream.
type Stream struct {
	s   *Scraper
	buf StreamBuffer
}

// Feed processes a decoded chunk. Complete lines are classified at once;
// a trailing partial line waits for the next chunk.
func (st *Stream) Feed(text string) {
	if text == "" {
		return
	}
	st.s.write(text)
	st.buf.WriteString(text)
	for {
		i := st.buf.FindLine()
		if i < 0 {
			break
		}
		st.s.processLine(st.buf.Consume(i))
	}
	st.s.progress.Add(len(text))
}

// End processes any unterminated final line.
func (st *Stream) End() {
	if st.buf.Len() > 0 {
		st.s.processLine(st.buf.Flush())
	}
}
