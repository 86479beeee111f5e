package classify

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Quota reports which categories may still be evaluated.
type Quota struct {
	ErrorsOpen   bool
	WarningsOpen bool
}

// LineClassifier classifies a single line of output.
type LineClassifier interface {
	Classify(line string, q Quota) Kind
}

// Passthrough classifies every line as Regular. It is used when a build
// reports its problems through launcher fragments instead of its output.
type Passthrough struct{}

// Classify always returns Regular.
func (Passthrough) Classify(string, Quota) Kind {
	return Regular
}

// PatternError describes a rule that failed to compile.
type PatternError struct {
	Kind      Kind
	Exception bool
	Pattern   string
	Err       error
}

func (e *PatternError) Error() string {
	list := "match"
	if e.Exception {
		list = "exception"
	}
	return fmt.Sprintf("invalid %s %s pattern %q: %v", e.Kind, list, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

type compiledRule struct {
	source string
	regex  *regexp.Regexp
}

type compiledCategory struct {
	match     []compiledRule
	exception []compiledRule
}

// Classifier is a compiled RuleSet.
//
// A Classifier is not safe for concurrent use; each build run owns one.
type Classifier struct {
	errors   compiledCategory
	warnings compiledCategory
	skipped  []*PatternError
	logger   *slog.Logger

	// evaluations counts lines evaluated per category.
	evaluations [3]int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger used for skipped rules and debug tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New compiles a rule set. Rules that fail to compile are logged, recorded
// in Skipped, and left out; the remaining rules keep their order.
func New(rs RuleSet, opts ...Option) *Classifier {
	c := &Classifier{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	c.errors = c.compileCategory(Error, rs.Error)
	c.warnings = c.compileCategory(Warning, rs.Warning)
	return c
}

func (c *Classifier) compileCategory(kind Kind, cat Category) compiledCategory {
	return compiledCategory{
		match:     c.compileList(kind, false, cat.Match),
		exception: c.compileList(kind, true, cat.Exception),
	}
}

func (c *Classifier) compileList(kind Kind, exception bool, patterns []string) []compiledRule {
	rules := make([]compiledRule, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			perr := &PatternError{Kind: kind, Exception: exception, Pattern: p, Err: err}
			c.skipped = append(c.skipped, perr)
			c.logger.Warn("skipping build output rule", "error", perr)
			continue
		}
		rules = append(rules, compiledRule{source: p, regex: re})
	}
	return rules
}

// Skipped returns the rules that failed to compile.
func (c *Classifier) Skipped() []*PatternError {
	return c.skipped
}

// Evaluations returns how many lines were evaluated against the rules of kind.
func (c *Classifier) Evaluations(kind Kind) int {
	if kind < Regular || kind > Error {
		return 0
	}
	return c.evaluations[kind]
}

// Classify returns the kind of line. Color escape sequences are ignored.
func (c *Classifier) Classify(line string, q Quota) Kind {
	line = StripColor(line)

	isError := false
	if q.ErrorsOpen {
		c.evaluations[Error]++
		isError = c.evaluate(Error, c.errors, line)
	}

	isWarning := false
	if q.WarningsOpen {
		c.evaluations[Warning]++
		isWarning = c.evaluate(Warning, c.warnings, line)
	}

	switch {
	case isError:
		return Error
	case isWarning:
		return Warning
	default:
		return Regular
	}
}

// evaluate runs the two-pass match/exception procedure for one category.
func (c *Classifier) evaluate(kind Kind, cat compiledCategory, line string) bool {
	matched := false
	for _, r := range cat.match {
		if r.regex.MatchString(line) {
			c.logger.Debug("build output match", "kind", kind, "line", line, "rule", r.source)
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	for _, r := range cat.exception {
		if r.regex.MatchString(line) {
			c.logger.Debug("build output exception", "kind", kind, "line", line, "rule", r.source)
			return false
		}
	}
	return true
}

var colorSequence = regexp.MustCompile("\x1b\\[[0-9;]*m")

// StripColor removes ANSI color escape sequences from s.
func StripColor(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	return colorSequence.ReplaceAllString(s, "")
}
