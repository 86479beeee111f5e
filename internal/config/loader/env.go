package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix starts every environment variable read as configuration.
const EnvPrefix = "BUILDSCAN_"

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "BUILDSCAN_")
	mapping map[string]string // Env var -> config path
	ignore  map[string]bool
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "BUILDSCAN_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(),
		ignore:  map[string]bool{},
	}
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable mappings.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
		ignore:  map[string]bool{},
	}
}

// defaultEnvMapping returns names whose path does not follow from the
// SECTION_SETTING_NAME convention.
func defaultEnvMapping() map[string]string {
	return map[string]string{
		"BUILDSCAN_LOG_LEVEL":     "logging.level",
		"BUILDSCAN_LOG_JSON":      "logging.json",
		"BUILDSCAN_COMMAND":       "build.command",
		"BUILDSCAN_CONFIG_TYPE":   "build.configType",
		"BUILDSCAN_SOURCE_DIR":    "paths.sourceDir",
		"BUILDSCAN_BINARY_DIR":    "paths.buildDir",
		"BUILDSCAN_MAX_ERRORS":    "scrape.maxErrors",
		"BUILDSCAN_MAX_WARNINGS":  "scrape.maxWarnings",
		"BUILDSCAN_REPORT":        "report.path",
		"BUILDSCAN_USE_LAUNCHERS": "build.useLaunchers",
	}
}

// Ignore excludes environment variables that share the prefix but are not
// configuration.
func (l *EnvLoader) Ignore(names ...string) {
	for _, n := range names {
		l.ignore[n] = true
	}
}

// Load reads environment variables and returns a configuration map.
// Note: Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for env, path := range l.mapping {
		if val, ok := os.LookupEnv(env); ok && !l.ignore[env] {
			SetByPath(config, path, parseValue(val))
		}
	}

	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		if _, mapped := l.mapping[name]; mapped || l.ignore[name] {
			continue
		}
		path := l.envToPath(name)
		if path == "" {
			continue
		}
		SetByPath(config, path, parseValue(value))
	}

	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// envToPath converts BUILDSCAN_SCRAPE_MAX_ERRORS to scrape.maxErrors.
// The first part names the section; the rest form the camelCase setting.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.TrimPrefix(env, l.prefix)
	parts := strings.Split(name, "_")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}

	section := strings.ToLower(parts[0])
	setting := strings.ToLower(parts[1])
	for _, part := range parts[2:] {
		if part != "" {
			setting += strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
		}
	}
	return section + "." + setting
}

// parseValue attempts to parse the string value into an appropriate type.
func parseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	// Only values with a decimal point, so integers stay integers.
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}

	return s
}
