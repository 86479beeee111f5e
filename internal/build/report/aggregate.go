package report

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dshills/buildscan/internal/build/classify"
	"github.com/dshills/buildscan/internal/build/launch"
	"github.com/dshills/buildscan/internal/build/scrape"
)

// Fragment is a launcher fragment selected for the report. Body is written
// verbatim.
type Fragment struct {
	Name string
	Kind classify.Kind
	Body []byte
}

// Selection is what a report contains: the kept events or fragments and
// the found and reported counts per category.
type Selection struct {
	Events    []*scrape.BuildEvent
	Fragments []Fragment

	ErrorsFound      int
	WarningsFound    int
	ErrorsReported   int
	WarningsReported int
}

// Aggregator chooses what a run reports.
type Aggregator interface {
	Aggregate(st *scrape.RunState) Selection
}

// quota tracks how many more items of each kind may be kept.
type quota struct {
	errors   int
	warnings int
}

func (q *quota) exhausted() bool {
	return q.errors <= 0 && q.warnings <= 0
}

// take reserves a slot for kind. last reports whether that was the final
// slot of its category.
func (q *quota) take(kind classify.Kind) (ok, last bool) {
	left := &q.warnings
	if kind == classify.Error {
		left = &q.errors
	}
	if *left <= 0 {
		return false, false
	}
	*left--
	return true, *left == 0
}

func (q *quota) release(kind classify.Kind) {
	if kind == classify.Error {
		q.errors++
	} else {
		q.warnings++
	}
}

func (s *Selection) found(kind classify.Kind) {
	if kind == classify.Error {
		s.ErrorsFound++
	} else {
		s.WarningsFound++
	}
}

func (s *Selection) reported(kind classify.Kind) {
	if kind == classify.Error {
		s.ErrorsReported++
	} else {
		s.WarningsReported++
	}
}

// LogScrape reports events scraped from build output.
type LogScrape struct {
	MaxErrors   int
	MaxWarnings int

	// Locator extracts source locations. Nil leaves them empty.
	Locator *classify.Locator

	// Simplifier shortens tree paths in reported text.
	Simplifier *classify.PathSimplifier
}

// Aggregate keeps the first events of each kind up to the caps. The last
// event kept for a category whose cap was filled carries the
// maximum-reached marker.
func (a LogScrape) Aggregate(st *scrape.RunState) Selection {
	sel := Selection{
		ErrorsFound:   st.TotalErrors,
		WarningsFound: st.TotalWarnings,
	}
	q := quota{errors: a.MaxErrors, warnings: a.MaxWarnings}

	for _, src := range st.Events {
		if q.exhausted() {
			break
		}
		ok, last := q.take(src.Kind)
		if !ok {
			continue
		}

		ev := src.Clone()
		ev.Text = a.Simplifier.Shorten(ev.Text)
		for i := range ev.PreContext {
			ev.PreContext[i] = a.Simplifier.Shorten(ev.PreContext[i])
		}
		for i := range ev.PostContext {
			ev.PostContext[i] = a.Simplifier.Shorten(ev.PostContext[i])
		}
		a.locate(ev)
		ev.MaximumReached = last

		sel.Events = append(sel.Events, ev)
		sel.reported(ev.Kind)
	}
	return sel
}

func (a LogScrape) locate(ev *scrape.BuildEvent) {
	if a.Locator == nil {
		return
	}
	file, line, ok := a.Locator.Locate(ev.Text)
	if !ok || file == "" {
		return
	}
	ev.SourceFile = a.Simplifier.Relativize(file)
	ev.SourceLine = line
}

// Launcher reports the fragments written by launchers.
type Launcher struct {
	Dir         string
	MaxErrors   int
	MaxWarnings int
	Logger      *slog.Logger
}

// Aggregate takes fragments in (modification time, name) order up to the
// caps. Events recorded by the run itself, such as a failure to start the
// build, are kept first. Unreadable fragments are skipped.
func (a Launcher) Aggregate(st *scrape.RunState) Selection {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sel Selection
	q := quota{errors: a.MaxErrors, warnings: a.MaxWarnings}

	for _, ev := range st.Events {
		sel.found(ev.Kind)
		if ok, _ := q.take(ev.Kind); ok {
			sel.Events = append(sel.Events, ev.Clone())
			sel.reported(ev.Kind)
		}
	}

	frags, err := launch.Scan(a.Dir)
	if err != nil {
		logger.Warn("cannot list launcher fragments", "dir", a.Dir, "error", err)
		return sel
	}

	for _, f := range frags {
		sel.found(f.Kind)
		if ok, _ := q.take(f.Kind); !ok {
			continue
		}
		body, err := os.ReadFile(f.Path)
		if err != nil {
			logger.Warn("skipping unreadable launcher fragment", "path", f.Path, "error", err)
			q.release(f.Kind)
			continue
		}
		sel.Fragments = append(sel.Fragments, Fragment{Name: f.Name, Kind: f.Kind, Body: body})
		sel.reported(f.Kind)
	}
	return sel
}

// SummaryLines returns the closing console summary for a selection.
func SummaryLines(sel Selection, maxErrors, maxWarnings int) []string {
	line := func(n, limit int, what string) string {
		more := ""
		if n >= limit {
			more = " or more"
		}
		return fmt.Sprintf("   %d%s Compiler %s", n, more, what)
	}
	return []string{
		line(sel.ErrorsFound, maxErrors, "errors"),
		line(sel.WarningsFound, maxWarnings, "warnings"),
	}
}
