package cli

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// execute runs the root command with args in a clean working directory.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	chdirForTest(t, t.TempDir())
	defer slog.SetDefault(slog.Default())

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)

	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "buildscan "+Version) {
		t.Errorf("output = %q", out)
	}
}

func TestHelpCommand(t *testing.T) {
	out, _, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, want := range []string{"run", "scan", "patterns", "version"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output should contain %q, got: %s", want, out)
		}
	}
}

func TestPatternsCommand(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "buildscan.toml", `
[patterns]
warningMatch = ["^LINT: "]
`)

	out, _, err := execute(t, "--config", cfgFile, "patterns")
	if err != nil {
		t.Fatalf("patterns: %v", err)
	}
	for _, want := range []string{"[error]", "[warning]", "[[location]]", "^LINT: "} {
		if !strings.Contains(out, want) {
			t.Errorf("patterns output missing %q", want)
		}
	}
}

func TestPatternsCommand_BadConfig(t *testing.T) {
	cfgFile := writeFile(t, t.TempDir(), "buildscan.toml", "[build]\ntimeout = true\n")
	if _, _, err := execute(t, "--config", cfgFile, "patterns"); err == nil {
		t.Error("patterns with an invalid config succeeded")
	}
}

func TestScanCommand_ReportFile(t *testing.T) {
	dir := t.TempDir()
	logPath := writeFile(t, dir, "build.log", "cc -c a.c\na.c:3: error: bad\nb.c:4: warning: meh\n")
	reportPath := filepath.Join(dir, "Build.xml")

	out, _, err := execute(t, "scan", logPath, "--report", reportPath, "--build-name", "linux-gcc")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "   1 Compiler errors") || !strings.Contains(out, "   1 Compiler warnings") {
		t.Errorf("summary = %q", out)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	report := string(data)
	for _, want := range []string{`BuildName="linux-gcc"`, "<Error>", "<Warning>", "a.c:3: error: bad"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestScanCommand_CappedCountLogged(t *testing.T) {
	dir := t.TempDir()
	logPath := writeFile(t, dir, "build.log", "a.c:1: error: one\nb.c:2: error: two\nc.c:3: error: three\n")
	reportPath := filepath.Join(dir, "Build.xml")

	_, errOut, err := execute(t, "scan", logPath, "--max-errors", "1", "--report", reportPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(errOut, `msg="report written"`) || !strings.Contains(errOut, `errors="3 (1 reported)"`) {
		t.Errorf("stderr = %q", errOut)
	}
	if !strings.Contains(errOut, "warnings=0") {
		t.Errorf("uncapped warning count missing: %q", errOut)
	}
}

func TestScanCommand_Stdout(t *testing.T) {
	logPath := writeFile(t, t.TempDir(), "build.log", "x.c:1: error: e\n")

	out, errOut, err := execute(t, "scan", logPath, "--max-errors", "5")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.HasPrefix(out, "<Build>") || !strings.Contains(out, "x.c:1: error: e") {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(errOut, "   1 Compiler errors") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestScanCommand_MissingLog(t *testing.T) {
	if _, _, err := execute(t, "scan", filepath.Join(t.TempDir(), "absent.log")); err == nil {
		t.Error("scan of a missing log succeeded")
	}
}

func TestRunCommand(t *testing.T) {
	out, errOut, err := execute(t, "run", "--command", `/bin/sh -c 'echo "x.c:1: error: e"'`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "x.c:1: error: e") || !strings.Contains(out, "<BuildCommand>") {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(errOut, "   1 Compiler errors") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRunCommand_Fail(t *testing.T) {
	_, _, err := execute(t, "run", "--fail", "--command", `/bin/sh -c 'exit 1'`)
	if !errors.Is(err, ErrBuildFailed) {
		t.Errorf("err = %v, want ErrBuildFailed", err)
	}

	if _, _, err := execute(t, "run", "--fail", "--command", "true"); err != nil {
		t.Errorf("clean build with --fail: %v", err)
	}
}

func TestRunCommand_NoCommand(t *testing.T) {
	if _, _, err := execute(t, "run"); !errors.Is(err, ErrNoCommand) {
		t.Errorf("err = %v, want ErrNoCommand", err)
	}
}

func TestOverrides(t *testing.T) {
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().Bool("launchers", false, "")
	cmd.Flags().Int("max-errors", 0, "")
	cmd.Flags().String("timeout", "", "")
	cmd.Flags().String("unmapped", "", "")
	cmd.Flags().String("report", "", "")
	if err := cmd.ParseFlags([]string{"--launchers", "--max-errors", "7", "--timeout", "90s", "--unmapped", "x"}); err != nil {
		t.Fatal(err)
	}

	got := overrides(cmd)
	build, _ := got["build"].(map[string]any)
	scrape, _ := got["scrape"].(map[string]any)
	if build["useLaunchers"] != true || build["timeout"] != "90s" {
		t.Errorf("build overrides = %v", build)
	}
	if scrape["maxErrors"] != int64(7) {
		t.Errorf("scrape overrides = %v", scrape)
	}
	if _, ok := got["report"]; ok {
		t.Error("unset flag produced an override")
	}
}

func TestUnknownConfigKeyWarning(t *testing.T) {
	cfgFile := writeFile(t, t.TempDir(), "buildscan.toml", "[scrape]\nmaxErorrs = 3\n")

	_, errOut, err := execute(t, "--config", cfgFile, "patterns")
	if err != nil {
		t.Fatalf("patterns: %v", err)
	}
	if !strings.Contains(errOut, "unknown configuration key") || !strings.Contains(errOut, "scrape.maxErorrs") {
		t.Errorf("stderr = %q", errOut)
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
