package launch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/sjson"
)

// EnvVar names the fragment directory in the build environment. Launchers
// write fragments only when it is set.
const EnvVar = "BUILDSCAN_LAUNCH_LOGS"

const (
	// ConfigFile is the launcher configuration written by Prepare.
	ConfigFile = "launch-config.json"

	warningMatchFile     = "CustomWarning.txt"
	warningExceptionFile = "CustomWarningSuppress.txt"
)

// Setup describes a launcher directory.
type Setup struct {
	// Dir is the fragment directory.
	Dir string

	// RunID identifies the build run.
	RunID string

	// SourceDir is passed to launchers for path simplification.
	SourceDir string

	// WarningMatch and WarningException are the project warning rules.
	// Launchers apply them to the output of each wrapped step.
	WarningMatch     []string
	WarningException []string
}

// Prepare empties and recreates the fragment directory, then writes the
// launcher configuration and custom warning rules into it.
func Prepare(s Setup) error {
	if err := Reset(s.Dir); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create launcher directory: %w", err)
	}

	if err := writeMatchers(filepath.Join(s.Dir, warningMatchFile), s.WarningMatch); err != nil {
		return err
	}
	if err := writeMatchers(filepath.Join(s.Dir, warningExceptionFile), s.WarningException); err != nil {
		return err
	}

	cfg, err := launchConfig(s)
	if err != nil {
		return fmt.Errorf("encode launcher config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, ConfigFile), cfg, 0o644); err != nil {
		return fmt.Errorf("write launcher config: %w", err)
	}
	return nil
}

// ErrNotLauncherDir is returned by Reset for a non-empty directory that
// Prepare did not create.
var ErrNotLauncherDir = errors.New("directory holds files but no " + ConfigFile + "; refusing to clear it")

// Reset removes the fragment directory and everything in it. Only a
// missing or empty directory, or one holding a launcher configuration, is
// removed.
func Reset(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clear launcher directory: %w", err)
	}
	if len(entries) > 0 {
		if _, err := os.Stat(filepath.Join(dir, ConfigFile)); err != nil {
			return fmt.Errorf("clear launcher directory %s: %w", dir, ErrNotLauncherDir)
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear launcher directory: %w", err)
	}
	return nil
}

func launchConfig(s Setup) ([]byte, error) {
	cfg := []byte(`{}`)
	var err error
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"runId", s.RunID},
		{"sourceDirectory", s.SourceDir},
		{"created", time.Now().UTC().Format(time.RFC3339)},
		{"fragments.error", ErrorPrefix + "*" + Suffix},
		{"fragments.warning", WarningPrefix + "*" + Suffix},
	} {
		cfg, err = sjson.SetBytes(cfg, kv.path, kv.value)
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func writeMatchers(path string, rules []string) error {
	if len(rules) == 0 {
		return nil
	}
	var b strings.Builder
	for _, r := range rules {
		b.WriteString(r)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
