package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdirForTest(t, t.TempDir())

	cfg, err := Load(Options{SkipEnv: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Build.Directory != "." || cfg.Build.ConfigType != "Release" || cfg.Build.Encoding != "utf-8" {
		t.Errorf("Build = %+v", cfg.Build)
	}
	want := ScrapeConfig{MaxErrors: 50, MaxWarnings: 50, PreContext: 10, PostContext: 10}
	if cfg.Scrape != want {
		t.Errorf("Scrape = %+v, want %+v", cfg.Scrape, want)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.JSON {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Report.Site == "" {
		t.Error("Report.Site has no default")
	}
	if len(cfg.Patterns.ErrorMatch) != 0 {
		t.Errorf("ErrorMatch = %q", cfg.Patterns.ErrorMatch)
	}
}

func TestLoad_Layers(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "buildscan.toml", `
[build]
command = "make -j4 ${CONFIGURATION_TYPE}"
timeout = "90s"

[scrape]
maxErrors = 20
maxWarnings = 30

[patterns]
warningMatch = ["^LINT: "]
warningException = "third_party/;generated/"
`)
	t.Setenv("BUILDSCAN_SCRAPE_MAX_WARNINGS", "5")
	t.Setenv("BUILDSCAN_LAUNCH_LOGS", "/not/config")

	cfg, err := Load(Options{
		File:      path,
		Overrides: map[string]any{"logging": map[string]any{"level": "debug"}},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Build.Command != "make -j4 ${CONFIGURATION_TYPE}" {
		t.Errorf("Command = %q", cfg.Build.Command)
	}
	if cfg.Build.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v", cfg.Build.Timeout)
	}
	if cfg.Scrape.MaxErrors != 20 {
		t.Errorf("MaxErrors = %d, want 20 from the file", cfg.Scrape.MaxErrors)
	}
	if cfg.Scrape.MaxWarnings != 5 {
		t.Errorf("MaxWarnings = %d, want 5 from the environment", cfg.Scrape.MaxWarnings)
	}
	if cfg.Scrape.PreContext != 10 {
		t.Errorf("PreContext = %d, want the default", cfg.Scrape.PreContext)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want the override", cfg.Logging.Level)
	}
	if len(cfg.Patterns.WarningMatch) != 1 || cfg.Patterns.WarningMatch[0] != "^LINT: " {
		t.Errorf("WarningMatch = %q", cfg.Patterns.WarningMatch)
	}
	if len(cfg.Patterns.WarningException) != 2 || cfg.Patterns.WarningException[1] != "generated/" {
		t.Errorf("WarningException = %q", cfg.Patterns.WarningException)
	}
}

func TestLoad_DefaultFileYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "buildscan.yaml", "build:\n  command: ninja\n  useLaunchers: true\n")
	chdirForTest(t, dir)

	cfg, err := Load(Options{SkipEnv: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Build.Command != "ninja" || !cfg.Build.UseLaunchers {
		t.Errorf("Build = %+v", cfg.Build)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "absent.toml"), SkipEnv: true})
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("err = %v, want ErrFileNotFound", err)
	}
}

func TestFromMap_Errors(t *testing.T) {
	m := Defaults()
	m["scrape"] = map[string]any{"maxErrors": "many", "maxWarnings": int64(-1)}
	m["build"] = map[string]any{"timeout": "soon", "useLaunchers": int64(3)}

	_, err := FromMap(m)
	if err == nil {
		t.Fatal("FromMap accepted bad values")
	}
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("err = %v, want a type mismatch", err)
	}
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("err = %v, want an invalid value", err)
	}

	var te *TypeError
	if !errors.As(err, &te) || te.Path != "build.timeout" {
		t.Errorf("first type error = %+v", te)
	}
}

func TestDecoder_Durations(t *testing.T) {
	tests := []struct {
		in   any
		want time.Duration
	}{
		{int64(30), 30 * time.Second},
		{1.5, 1500 * time.Millisecond},
		{"2m", 2 * time.Minute},
		{"45", 45 * time.Second},
		{"", 0},
		{5 * time.Second, 5 * time.Second},
	}
	for _, tt := range tests {
		d := &decoder{data: map[string]any{"build": map[string]any{"timeout": tt.in}}}
		if got := d.getDuration("build.timeout"); got != tt.want || len(d.errs) != 0 {
			t.Errorf("getDuration(%v) = %v (errs %v), want %v", tt.in, got, d.errs, tt.want)
		}
	}
}

func TestConfig_Handler(t *testing.T) {
	cfg := &Config{
		Build: BuildConfig{
			Command:      "make",
			ConfigType:   "Debug",
			Directory:    "/src/build",
			Timeout:      time.Minute,
			UseLaunchers: true,
		},
		Scrape:   ScrapeConfig{MaxErrors: 1, MaxWarnings: 2, PreContext: 3, PostContext: 4},
		Patterns: PatternsConfig{ErrorMatch: []string{"^E"}},
		Paths:    PathsConfig{SourceDir: "/src", BuildDir: "/src/build"},
		Report:   ReportConfig{SnippetsDir: "/src/build/.snippets"},
	}

	hc := cfg.Handler()
	if hc.Command != "make" || hc.ConfigurationType != "Debug" || hc.Dir != "/src/build" || !hc.UseLaunchers {
		t.Errorf("handler config = %+v", hc)
	}
	if hc.Scrape.MaxErrors != 1 || hc.Scrape.MaxPostContext != 4 {
		t.Errorf("Scrape = %+v", hc.Scrape)
	}
	if len(hc.Patterns.ErrorMatch) != 1 || hc.SourceDir != "/src" || hc.SnippetsDir != "/src/build/.snippets" {
		t.Errorf("handler config = %+v", hc)
	}
}

func TestLoad_UnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "buildscan.toml", `
[build]
comand = "make"

[scrape]
maxErrors = 5

[extras]
x = 1
`)

	cfg, err := Load(Options{File: path, SkipEnv: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"build.comand", "extras"}
	if !slices.Equal(cfg.Unknown, want) {
		t.Errorf("Unknown = %q, want %q", cfg.Unknown, want)
	}
	if cfg.Scrape.MaxErrors != 5 {
		t.Errorf("MaxErrors = %d", cfg.Scrape.MaxErrors)
	}
}

func TestUnknownKeys_ScalarOverMap(t *testing.T) {
	known := map[string]any{"build": map[string]any{"command": ""}}
	if got := UnknownKeys(known, map[string]any{"build": "make"}); len(got) != 0 {
		t.Errorf("UnknownKeys = %q; a type mismatch is the decoder's to report", got)
	}
}

// chdirForTest changes the working directory for the duration of the test
// and restores it on cleanup (equivalent of testing.T.Chdir, Go 1.24+).
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
