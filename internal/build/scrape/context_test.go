package scrape

import (
	"strings"
	"testing"

	"github.com/dshills/buildscan/internal/build/classify"
)

func TestStreamBuffer(t *testing.T) {
	var b StreamBuffer

	if b.FindLine() != -1 {
		t.Error("empty buffer should have no line")
	}

	b.WriteString("alpha\nbe")
	i := b.FindLine()
	if i != 5 {
		t.Fatalf("FindLine = %d, want 5", i)
	}
	if got := b.Consume(i); got != "alpha" {
		t.Errorf("Consume = %q, want alpha", got)
	}
	if b.FindLine() != -1 {
		t.Error("partial line reported as complete")
	}
	if b.Len() != 2 {
		t.Errorf("Len = %d, want 2", b.Len())
	}

	b.WriteString("ta\r\n\ngamma")
	if got := b.Consume(b.FindLine()); got != "beta" {
		t.Errorf("Consume = %q, want beta", got)
	}
	if got := b.Consume(b.FindLine()); got != "" {
		t.Errorf("Consume = %q, want empty line", got)
	}
	if got := b.Flush(); got != "gamma" {
		t.Errorf("Flush = %q, want gamma", got)
	}
	if b.Len() != 0 {
		t.Errorf("Len after Flush = %d", b.Len())
	}
}

func TestContextTracker_RingEvictsOldest(t *testing.T) {
	ct := NewContextTracker(2, 0)
	for _, line := range []string{"a", "b", "c"} {
		ct.Regular(line)
	}

	got := ct.Lines()
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("Lines = %q, want [b c]", got)
	}
}

func TestContextTracker_ZeroSizes(t *testing.T) {
	ct := NewContextTracker(0, 0)
	ct.Regular("x")

	ev := &BuildEvent{}
	ct.Begin(ev)
	ct.Regular("y")

	if len(ev.PreContext) != 0 || len(ev.PostContext) != 0 {
		t.Errorf("context = %q / %q, want none", ev.PreContext, ev.PostContext)
	}
}

func TestContextTracker_PreemptedPostContext(t *testing.T) {
	ct := NewContextTracker(5, 5)

	first := &BuildEvent{}
	ct.Begin(first)
	ct.Regular("p1")

	second := &BuildEvent{}
	ct.Begin(second)
	ct.Regular("q1")

	if len(first.PostContext) != 1 || first.PostContext[0] != "p1" {
		t.Errorf("first.PostContext = %q, want [p1]", first.PostContext)
	}
	if len(second.PreContext) != 0 {
		t.Errorf("second.PreContext = %q, want empty", second.PreContext)
	}
	if len(second.PostContext) != 1 || second.PostContext[0] != "q1" {
		t.Errorf("second.PostContext = %q, want [q1]", second.PostContext)
	}
}

func TestBuildEvent_PostContextText(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		window int
		marker bool
		want   string
	}{
		{"partial window", []string{"a", "b"}, 10, false, "a\nb\n"},
		{"full window", []string{"a", "b"}, 2, false, "a\nb"},
		{"partial window with marker", []string{"a", "b"}, 10, true, "a\nb\n" + MaximumReachedNote},
		{"full window with marker", []string{"a", "b"}, 2, true, "a\nb" + MaximumReachedNote},
		{"empty", nil, 10, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &BuildEvent{PostContext: tt.lines, PostContextWindow: tt.window, MaximumReached: tt.marker}
			if got := ev.PostContextText(); got != tt.want {
				t.Errorf("PostContextText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContextTracker_RecordsPostWindow(t *testing.T) {
	tr := NewContextTracker(2, 3)
	ev := &BuildEvent{Kind: classify.Error}
	tr.Begin(ev)
	tr.Regular("x")

	if ev.PostContextWindow != 3 {
		t.Errorf("PostContextWindow = %d, want 3", ev.PostContextWindow)
	}
	if got := ev.PostContextText(); got != "x\n" {
		t.Errorf("PostContextText = %q, want %q", got, "x\n")
	}
}

func TestBuildEvent_Clone(t *testing.T) {
	ev := &BuildEvent{Kind: classify.Error, PreContext: []string{"a"}}
	c := ev.Clone()
	c.PreContext[0] = "changed"

	if ev.PreContext[0] != "a" {
		t.Error("Clone shares PreContext")
	}
	if !c.IsError() {
		t.Error("Clone lost kind")
	}
}

func TestProgress_Glyphs(t *testing.T) {
	var out strings.Builder
	p := NewProgress(&out)

	p.Add(TickBytes)
	p.Mark(classify.Warning)
	p.Add(TickBytes)
	p.Mark(classify.Warning)
	p.Mark(classify.Error)
	p.Add(1)
	p.Add(TickBytes - 1)

	if got := out.String(); got != ".*!" {
		t.Errorf("glyphs = %q, want %q", got, ".*!")
	}
}

func TestProgress_SizeLines(t *testing.T) {
	var out strings.Builder
	p := NewProgress(&out)

	p.Add(TicksPerLine * TickBytes)
	want := strings.Repeat(".", TicksPerLine) + "  Size: 50K\n    "
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	out.Reset()
	p.Finish()
	if got := out.String(); got != " Size of output: 50K\n" {
		t.Errorf("Finish = %q", got)
	}
}

func TestProgress_Legend(t *testing.T) {
	var out strings.Builder
	NewProgress(&out).Begin(false)
	if !strings.Contains(out.String(), "'!' represents an error") {
		t.Errorf("log-scrape legend = %q", out.String())
	}

	out.Reset()
	NewProgress(&out).Begin(true)
	if strings.Contains(out.String(), "'!'") {
		t.Errorf("launcher legend = %q", out.String())
	}
}

func TestProgress_Nil(t *testing.T) {
	var p *Progress
	p.Begin(false)
	p.Mark(classify.Error)
	p.Add(4096)
	p.Finish()
	if p.Size() != 0 {
		t.Error("nil Progress should report zero size")
	}
}
