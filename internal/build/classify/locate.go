package classify

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Placeholder replaces the parent of the source or build tree in reported
// text.
const Placeholder = "/.../"

// minSimplifyLength is the shortest tree path worth simplifying.
const minSimplifyLength = 20

type compiledLocation struct {
	regex *regexp.Regexp
	rule  LocationRule
}

// Locator extracts source locations from event text.
type Locator struct {
	rules   []compiledLocation
	skipped []*PatternError
}

// NewLocator compiles location rules in order. Rules that fail to compile
// are logged and skipped.
func NewLocator(rules []LocationRule, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}

	l := &Locator{rules: make([]compiledLocation, 0, len(rules))}
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			perr := &PatternError{Kind: Regular, Pattern: r.Pattern, Err: err}
			l.skipped = append(l.skipped, perr)
			logger.Warn("skipping source location rule", "error", perr)
			continue
		}
		l.rules = append(l.rules, compiledLocation{regex: re, rule: r})
	}
	return l
}

// Skipped returns the rules that failed to compile.
func (l *Locator) Skipped() []*PatternError {
	return l.skipped
}

// Locate returns the file and line named by the first matching rule.
// A line group that does not parse yields line 0.
func (l *Locator) Locate(text string) (file string, line int, ok bool) {
	for _, r := range l.rules {
		m := r.regex.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if r.rule.File > 0 && r.rule.File < len(m) {
			file = m[r.rule.File]
		}
		if r.rule.Line > 0 && r.rule.Line < len(m) {
			line, _ = strconv.Atoi(m[r.rule.Line])
		}
		return file, line, true
	}
	return "", 0, false
}

// PathSimplifier rewrites paths under the source and build trees.
type PathSimplifier struct {
	sourceDir string
	prefixes  []string
}

// NewPathSimplifier creates a simplifier for the given trees. Either may be
// empty. Trees with short paths are left alone.
func NewPathSimplifier(sourceDir, buildDir string) *PathSimplifier {
	s := &PathSimplifier{sourceDir: strings.TrimRight(toSlash(sourceDir), "/")}
	for _, dir := range []string{sourceDir, buildDir} {
		if p := parentPrefix(dir); p != "" {
			s.prefixes = append(s.prefixes, p)
		}
	}
	return s
}

// parentPrefix returns the parent of dir with a trailing slash, or "" when
// dir is too short to simplify.
func parentPrefix(dir string) string {
	d := strings.TrimRight(toSlash(dir), "/")
	if len(d) <= minSimplifyLength {
		return ""
	}
	i := strings.LastIndex(d, "/")
	if i < 0 {
		return ""
	}
	return d[:i+1]
}

// Shorten replaces the parent of each tree with Placeholder.
func (s *PathSimplifier) Shorten(text string) string {
	if s == nil {
		return text
	}
	for _, p := range s.prefixes {
		text = strings.ReplaceAll(text, p, Placeholder)
	}
	return text
}

// Relativize converts an extracted file path to forward-slash form relative
// to its tree. A shortened path drops the placeholder and the tree's own
// directory name; an absolute path under the source tree loses that prefix.
func (s *PathSimplifier) Relativize(file string) string {
	file = toSlash(file)
	if strings.Contains(file, Placeholder) {
		file = strings.ReplaceAll(file, Placeholder, "")
		if i := strings.IndexByte(file, '/'); i >= 0 {
			file = file[i+1:]
		}
		return file
	}
	if s != nil && s.sourceDir != "" && strings.HasPrefix(file, s.sourceDir+"/") {
		file = strings.TrimPrefix(file, s.sourceDir+"/")
	}
	return file
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
