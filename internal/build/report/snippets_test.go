package report

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSnippetFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func seedSnippets(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	target := filepath.Join(dir, "build", "targets", "app")
	writeSnippetFile(t, filepath.Join(target, "compile-1.json"),
		`{"role":"compile","source":"a.c","duration":30}`)
	writeSnippetFile(t, filepath.Join(target, "link-1.json"),
		`{"role":"link","targetType":"EXECUTABLE","targetLabels":["core","fast"],`+
			`"command":"cc -o app a.o","outputs":["app"],"outputSizes":[4096],`+
			`"dynamicSystemInformation":{"afterHostMemoryUsed":1.5}}`)
	writeSnippetFile(t, filepath.Join(target, "broken.json"), `{"role":`)
	writeSnippetFile(t, filepath.Join(dir, "build", "targets", "lib", "compile-2.json"),
		`{"role":"compile","source":"b.c"}`)
	writeSnippetFile(t, filepath.Join(dir, "build", "commands", "cmd-1.json"),
		`{"role":"custom","command":"gen.sh"}`)
	return dir
}

func TestSnippets_Collect(t *testing.T) {
	dir := seedSnippets(t)

	in := Snippets{Dir: dir}.Collect()

	if len(in.Targets) != 2 {
		t.Fatalf("targets = %d, want 2", len(in.Targets))
	}
	app := in.Targets[0]
	if app.Name != "app" || app.Type != "EXECUTABLE" {
		t.Errorf("target = %s (%s), want app (EXECUTABLE)", app.Name, app.Type)
	}
	if len(app.Labels) != 2 || app.Labels[0] != "core" || app.Labels[1] != "fast" {
		t.Errorf("labels = %q", app.Labels)
	}
	if len(app.Snippets) != 2 {
		t.Fatalf("app snippets = %d, want 2 (malformed one skipped)", len(app.Snippets))
	}

	compile := app.Snippets[0]
	if compile.Role != "compile" || len(compile.Attrs) != 2 {
		t.Fatalf("compile snippet = %+v", compile)
	}
	if compile.Attrs[0] != (Attr{"source", "a.c"}) || compile.Attrs[1] != (Attr{"duration", "30"}) {
		t.Errorf("attrs = %+v, want source then duration", compile.Attrs)
	}

	link := app.Snippets[1]
	if len(link.Outputs) != 1 || link.Outputs[0] != (Output{Name: "app", Size: "4096"}) {
		t.Errorf("outputs = %+v", link.Outputs)
	}
	if len(link.Measurements) != 1 || link.Measurements[0] != (Measurement{"afterHostMemoryUsed", "1.5"}) {
		t.Errorf("measurements = %+v", link.Measurements)
	}
	for _, a := range link.Attrs {
		if a.Name == "targetLabels" || a.Name == "outputs" || a.Name == "role" {
			t.Errorf("structured field %q written as attribute", a.Name)
		}
	}

	if lib := in.Targets[1]; lib.Name != "lib" || lib.Type != unknownTargetType {
		t.Errorf("lib target = %s (%s), want lib (UNKNOWN)", lib.Name, lib.Type)
	}

	if len(in.Commands) != 1 || in.Commands[0].Role != "custom" {
		t.Errorf("commands = %+v", in.Commands)
	}
}

func TestSnippets_ConsumedOnce(t *testing.T) {
	dir := seedSnippets(t)

	if in := (Snippets{Dir: dir}).Collect(); in.Empty() {
		t.Fatal("first collection found nothing")
	}

	if _, err := os.Stat(filepath.Join(dir, "build", "targets", "app")); !os.IsNotExist(err) {
		t.Error("target directory left behind")
	}
	if _, err := os.Stat(filepath.Join(dir, "build", "commands", "cmd-1.json")); !os.IsNotExist(err) {
		t.Error("command snippet left behind")
	}

	if in := (Snippets{Dir: dir}).Collect(); !in.Empty() {
		t.Errorf("second collection = %+v, want empty", in)
	}
}

func TestSnippets_MissingDir(t *testing.T) {
	if in := (Snippets{Dir: filepath.Join(t.TempDir(), "absent")}).Collect(); !in.Empty() {
		t.Errorf("Collect = %+v, want empty", in)
	}
	if in := (Snippets{}).Collect(); !in.Empty() {
		t.Errorf("Collect with no dir = %+v, want empty", in)
	}
}

func TestElementName(t *testing.T) {
	tests := map[string]string{
		"compile": "Compile",
		"link":    "Link",
		"custom":  "CustomCommand",
		"install": "Install",
		"cmake":   "Command",
		"":        "Command",
	}
	for role, want := range tests {
		if got := elementName(role); got != want {
			t.Errorf("elementName(%q) = %q, want %q", role, got, want)
		}
	}
}
