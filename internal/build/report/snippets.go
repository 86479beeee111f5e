package report

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Instrumentation is per-target and per-command timing data collected from
// snippet files.
type Instrumentation struct {
	Targets  []Target
	Commands []Snippet
}

// Empty reports whether there is nothing to write.
func (in *Instrumentation) Empty() bool {
	return in == nil || (len(in.Targets) == 0 && len(in.Commands) == 0)
}

// Target is one build target and the snippets recorded for it.
type Target struct {
	Name     string
	Type     string
	Labels   []string
	Snippets []Snippet
}

// Snippet is one instrumented command.
type Snippet struct {
	// Role selects the element name: compile, link, custom or install.
	Role string

	// Attrs holds the scalar fields of the snippet in document order.
	Attrs []Attr

	Outputs      []Output
	Measurements []Measurement
}

// Attr is a name and value pair.
type Attr struct {
	Name  string
	Value string
}

// Output is a file produced by a command.
type Output struct {
	Name string
	Size string
}

// Measurement is a named numeric reading taken while the command ran.
type Measurement struct {
	Name  string
	Value string
}

// unknownTargetType is used when a target has no link descriptor.
const unknownTargetType = "UNKNOWN"

// Snippets collects instrumentation from a snippet directory laid out as
// build/targets/<name>/*.json and build/commands/*.json. Consumed snippets
// are deleted, so a second collection over the same directory finds
// nothing.
type Snippets struct {
	Dir    string
	Logger *slog.Logger
}

// Collect gathers and removes the snippets. A missing directory yields an
// empty result.
func (s Snippets) Collect() *Instrumentation {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	in := &Instrumentation{}
	if s.Dir == "" {
		return in
	}

	targetsDir := filepath.Join(s.Dir, "build", "targets")
	entries, err := os.ReadDir(targetsDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("cannot list instrumentation targets", "dir", targetsDir, "error", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(targetsDir, e.Name())
		in.Targets = append(in.Targets, collectTarget(e.Name(), dir, logger))
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("cannot remove consumed target snippets", "dir", dir, "error", err)
		}
	}

	commandsDir := filepath.Join(s.Dir, "build", "commands")
	for _, path := range jsonFiles(commandsDir, logger) {
		if snip, ok := readSnippet(path, logger); ok {
			in.Commands = append(in.Commands, snip)
		}
		if err := os.Remove(path); err != nil {
			logger.Warn("cannot remove consumed command snippet", "path", path, "error", err)
		}
	}

	return in
}

func collectTarget(name, dir string, logger *slog.Logger) Target {
	t := Target{Name: name, Type: unknownTargetType}

	files := jsonFiles(dir, logger)
	for _, path := range files {
		if !strings.HasPrefix(filepath.Base(path), "link-") {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil || !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
			logger.Warn("ignoring malformed link snippet", "path", path)
			break
		}
		link := gjson.ParseBytes(data)
		if v := link.Get("targetType"); v.Exists() {
			t.Type = v.String()
		}
		for _, label := range link.Get("targetLabels").Array() {
			t.Labels = append(t.Labels, label.String())
		}
		break
	}

	for _, path := range files {
		if snip, ok := readSnippet(path, logger); ok {
			t.Snippets = append(t.Snippets, snip)
		}
	}
	return t
}

// jsonFiles lists the .json files in dir in name order.
func jsonFiles(dir string, logger *slog.Logger) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("cannot list snippets", "dir", dir, "error", err)
		}
		return nil
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths
}

// snippetFields are handled specially rather than written as attributes.
var snippetFields = map[string]bool{
	"role":                     true,
	"outputs":                  true,
	"outputSizes":              true,
	"dynamicSystemInformation": true,
	"targetLabels":             true,
}

func readSnippet(path string, logger *slog.Logger) (Snippet, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("cannot read snippet", "path", path, "error", err)
		return Snippet{}, false
	}
	if !gjson.ValidBytes(data) {
		logger.Warn("ignoring malformed snippet", "path", path)
		return Snippet{}, false
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		logger.Warn("ignoring malformed snippet", "path", path)
		return Snippet{}, false
	}

	snip := Snippet{Role: doc.Get("role").String()}
	doc.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if snippetFields[name] || value.IsObject() || value.IsArray() {
			return true
		}
		snip.Attrs = append(snip.Attrs, Attr{Name: name, Value: value.String()})
		return true
	})

	sizes := doc.Get("outputSizes").Array()
	for i, out := range doc.Get("outputs").Array() {
		o := Output{Name: out.String()}
		if i < len(sizes) {
			o.Size = sizes[i].String()
		}
		snip.Outputs = append(snip.Outputs, o)
	}

	doc.Get("dynamicSystemInformation").ForEach(func(key, value gjson.Result) bool {
		snip.Measurements = append(snip.Measurements, Measurement{Name: key.String(), Value: value.String()})
		return true
	})

	return snip, true
}

// elementName maps a snippet role to its report element.
func elementName(role string) string {
	switch role {
	case "compile":
		return "Compile"
	case "link":
		return "Link"
	case "custom":
		return "CustomCommand"
	case "install":
		return "Install"
	default:
		return "Command"
	}
}
