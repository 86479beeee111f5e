package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/buildscan/internal/build"
	"github.com/dshills/buildscan/internal/build/launch"
	"github.com/dshills/buildscan/internal/build/scrape"
	"github.com/dshills/buildscan/internal/config/loader"
)

// DefaultFiles are tried in order when no file is named.
var DefaultFiles = []string{"buildscan.toml", "buildscan.yaml", "buildscan.yml"}

// Defaults returns the built-in settings layer.
func Defaults() map[string]any {
	opts := scrape.DefaultOptions()
	site, err := os.Hostname()
	if err != nil {
		site = "unknown"
	}

	return map[string]any{
		"build": map[string]any{
			"command":       "",
			"configType":    build.DefaultConfigurationType,
			"directory":     ".",
			"timeout":       int64(0),
			"killOnTimeout": false,
			"encoding":      "utf-8",
			"useLaunchers":  false,
			"launchDir":     "",
			"logFile":       "",
		},
		"scrape": map[string]any{
			"maxErrors":   int64(opts.MaxErrors),
			"maxWarnings": int64(opts.MaxWarnings),
			"preContext":  int64(opts.MaxPreContext),
			"postContext": int64(opts.MaxPostContext),
		},
		"patterns": map[string]any{
			"errorMatch":       []any{},
			"errorException":   []any{},
			"warningMatch":     []any{},
			"warningException": []any{},
		},
		"paths": map[string]any{
			"sourceDir": "",
			"buildDir":  "",
		},
		"report": map[string]any{
			"path":        "",
			"site":        site,
			"buildName":   "",
			"snippetsDir": "",
		},
		"logging": map[string]any{
			"level": "info",
			"json":  false,
		},
	}
}

// Options selects the layers Load reads.
type Options struct {
	// File is the project file. Empty tries DefaultFiles in the working
	// directory and skips the layer when none exists.
	File string

	// Overrides is the highest layer, usually built from flags.
	Overrides map[string]any

	// SkipEnv ignores the environment layer.
	SkipEnv bool
}

// Load merges the layers and decodes the result.
func Load(opts Options) (*Config, error) {
	merged := Defaults()

	file, err := loadFile(opts.File)
	if err != nil {
		return nil, err
	}
	unknown := UnknownKeys(merged, file)
	merged = loader.DeepMerge(merged, file)

	if !opts.SkipEnv {
		env := loader.NewEnvLoader(loader.EnvPrefix)
		env.Ignore(launch.EnvVar)
		vars, err := env.Load()
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		merged = loader.DeepMerge(merged, vars)
	}

	merged = loader.DeepMerge(merged, opts.Overrides)
	cfg, err := FromMap(merged)
	if err != nil {
		return nil, err
	}
	cfg.Unknown = unknown
	return cfg, nil
}

// UnknownKeys returns the dotted paths in data that have no counterpart in
// known, sorted. Unknown keys are ignored by the decoder, so they usually
// mark a misspelled setting.
func UnknownKeys(known, data map[string]any) []string {
	var out []string
	var walk func(prefix string, k, d map[string]any)
	walk = func(prefix string, k, d map[string]any) {
		for key, v := range d {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			kv, ok := k[key]
			if !ok {
				out = append(out, path)
				continue
			}
			km, kIsMap := kv.(map[string]any)
			dm, dIsMap := v.(map[string]any)
			if kIsMap && dIsMap {
				walk(path, km, dm)
			}
		}
	}
	walk("", known, data)
	slices.Sort(out)
	return out
}

func loadFile(path string) (map[string]any, error) {
	if path != "" {
		data, err := loader.NewFileLoader(path).Load()
		if err != nil {
			return nil, err
		}
		if data == nil {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return data, nil
	}

	for _, name := range DefaultFiles {
		data, err := loader.NewFileLoader(name).Load()
		if err != nil {
			return nil, err
		}
		if data != nil {
			return data, nil
		}
	}
	return nil, nil
}

// FromMap decodes a merged settings map. Every type error is reported.
func FromMap(m map[string]any) (*Config, error) {
	d := &decoder{data: m}
	cfg := &Config{
		Build:    d.build(),
		Scrape:   d.scrape(),
		Patterns: d.patterns(),
		Paths:    d.paths(),
		Report:   d.report(),
		Logging:  d.logging(),
	}
	if len(d.errs) > 0 {
		return nil, errors.Join(d.errs...)
	}
	return cfg, nil
}

// Handler returns the build handler configuration.
func (c *Config) Handler() build.Config {
	return build.Config{
		Command:           c.Build.Command,
		ConfigurationType: c.Build.ConfigType,
		Dir:               c.Build.Directory,
		Timeout:           c.Build.Timeout,
		KillOnTimeout:     c.Build.KillOnTimeout,
		Encoding:          c.Build.Encoding,
		UseLaunchers:      c.Build.UseLaunchers,
		LaunchDir:         c.Build.LaunchDir,
		LogFile:           c.Build.LogFile,
		Scrape: scrape.Options{
			MaxErrors:      c.Scrape.MaxErrors,
			MaxWarnings:    c.Scrape.MaxWarnings,
			MaxPreContext:  c.Scrape.PreContext,
			MaxPostContext: c.Scrape.PostContext,
		},
		Patterns: build.Patterns{
			ErrorMatch:       c.Patterns.ErrorMatch,
			ErrorException:   c.Patterns.ErrorException,
			WarningMatch:     c.Patterns.WarningMatch,
			WarningException: c.Patterns.WarningException,
		},
		SourceDir:   c.Paths.SourceDir,
		BuildDir:    c.Paths.BuildDir,
		SnippetsDir: c.Report.SnippetsDir,
	}
}

// decoder reads typed values from a settings map, collecting errors.
type decoder struct {
	data map[string]any
	errs []error
}

func (d *decoder) get(path string) (any, bool) {
	return loader.GetByPath(d.data, path)
}

func (d *decoder) mismatch(path, expected string, v any) {
	d.errs = append(d.errs, &TypeError{Path: path, Expected: expected, Actual: typeName(v)})
}

func (d *decoder) getString(path string) string {
	v, ok := d.get(path)
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		d.mismatch(path, "string", v)
		return ""
	}
}

func (d *decoder) getBool(path string) bool {
	v, ok := d.get(path)
	if !ok || v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, err := strconv.ParseBool(val)
		if err != nil {
			d.mismatch(path, "bool", v)
		}
		return b
	default:
		d.mismatch(path, "bool", v)
		return false
	}
}

func (d *decoder) getInt(path string) int {
	v, ok := d.get(path)
	if !ok || v == nil {
		return 0
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val != math.Trunc(val) {
			d.mismatch(path, "int", v)
		}
		return int(val)
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			d.mismatch(path, "int", v)
		}
		return i
	default:
		d.mismatch(path, "int", v)
		return 0
	}
}

// getCount reads a non-negative integer.
func (d *decoder) getCount(path string) int {
	n := d.getInt(path)
	if n < 0 {
		d.errs = append(d.errs, &ValueError{Path: path, Value: n, Message: "must not be negative"})
		return 0
	}
	return n
}

// getDuration accepts a duration value, a number of seconds, or a string
// in either form.
func (d *decoder) getDuration(path string) time.Duration {
	v, ok := d.get(path)
	if !ok || v == nil {
		return 0
	}
	var dur time.Duration
	switch val := v.(type) {
	case time.Duration:
		dur = val
	case int64:
		dur = time.Duration(val) * time.Second
	case int:
		dur = time.Duration(val) * time.Second
	case float64:
		dur = time.Duration(val * float64(time.Second))
	case string:
		if val == "" {
			return 0
		}
		if secs, err := strconv.ParseFloat(val, 64); err == nil {
			dur = time.Duration(secs * float64(time.Second))
			break
		}
		parsed, err := time.ParseDuration(val)
		if err != nil {
			d.mismatch(path, "duration", v)
			return 0
		}
		dur = parsed
	default:
		d.mismatch(path, "duration", v)
		return 0
	}
	if dur < 0 {
		d.errs = append(d.errs, &ValueError{Path: path, Value: v, Message: "must not be negative"})
		return 0
	}
	return dur
}

// getStringList accepts a list of strings or one string of ';'-separated
// entries. Empty entries are dropped.
func (d *decoder) getStringList(path string) []string {
	v, ok := d.get(path)
	if !ok || v == nil {
		return nil
	}
	var out []string
	switch val := v.(type) {
	case string:
		for _, s := range strings.Split(val, ";") {
			if s != "" {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, val...)
	case []any:
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				d.mismatch(path, "[]string", v)
				return nil
			}
			out = append(out, s)
		}
	default:
		d.mismatch(path, "[]string", v)
	}
	return out
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case string:
		return "string"
	case int, int64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case time.Duration:
		return "duration"
	case []string:
		return "[]string"
	case []any:
		return "[]any"
	case map[string]any:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}
