package loader

import (
	"testing"
	"time"
)

func TestEnvLoader_Load(t *testing.T) {
	t.Setenv("BUILDSCAN_LOG_LEVEL", "debug")
	t.Setenv("BUILDSCAN_MAX_ERRORS", "0")
	t.Setenv("BUILDSCAN_BUILD_KILL_ON_TIMEOUT", "yes")
	t.Setenv("BUILDSCAN_SCRAPE_POST_CONTEXT", "3")
	t.Setenv("BUILDSCAN_LAUNCH_LOGS", "/tmp/fragments")

	l := NewEnvLoader(EnvPrefix)
	l.Ignore("BUILDSCAN_LAUNCH_LOGS")
	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if v, ok := GetByPath(config, "logging.level"); !ok || v != "debug" {
		t.Errorf("logging.level = %v, want debug", v)
	}
	if v, ok := GetByPath(config, "scrape.maxErrors"); !ok || v != int64(0) {
		t.Errorf("scrape.maxErrors = %v (%T), want 0", v, v)
	}
	if v, ok := GetByPath(config, "build.killOnTimeout"); !ok || v != true {
		t.Errorf("build.killOnTimeout = %v, want true", v)
	}
	if v, ok := GetByPath(config, "scrape.postContext"); !ok || v != int64(3) {
		t.Errorf("scrape.postContext = %v, want 3", v)
	}
	if _, ok := config["launch"]; ok {
		t.Error("ignored variable loaded as configuration")
	}
}

func TestEnvLoader_envToPath(t *testing.T) {
	l := NewEnvLoader(EnvPrefix)

	tests := map[string]string{
		"BUILDSCAN_BUILD_COMMAND":        "build.command",
		"BUILDSCAN_SCRAPE_MAX_WARNINGS":  "scrape.maxWarnings",
		"BUILDSCAN_PATHS_SOURCE_DIR":     "paths.sourceDir",
		"BUILDSCAN_PATTERNS_ERROR_MATCH": "patterns.errorMatch",
		"BUILDSCAN_SINGLE":               "",
		"BUILDSCAN__X":                   "",
	}
	for env, want := range tests {
		if got := l.envToPath(env); got != want {
			t.Errorf("envToPath(%q) = %q, want %q", env, got, want)
		}
	}
}

func TestEnvLoader_AddMapping(t *testing.T) {
	t.Setenv("CI_BUILD_CMD", "make ci")

	l := NewEnvLoaderWithMapping(EnvPrefix, nil)
	l.AddMapping("CI_BUILD_CMD", "build.command")
	config, err := l.Load()
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := GetByPath(config, "build.command"); v != "make ci" {
		t.Errorf("build.command = %v", v)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", ""},
		{"true", true},
		{"Off", false},
		{"1", int64(1)},
		{"0", int64(0)},
		{"2.5", 2.5},
		{"90s", 90 * time.Second},
		{"utf-8", "utf-8"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
		}
	}

	list, ok := parseValue(`["^a", "^b"]`).([]any)
	if !ok || len(list) != 2 {
		t.Errorf("parseValue(list) = %#v", list)
	}
}
