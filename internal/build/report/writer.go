// Package report selects what a build run reports and writes it as a Build
// report element.
//
// Two aggregators exist and exactly one is used per run. LogScrape keeps
// the first scraped events of each kind up to the quotas and fills in
// source locations. Launcher takes pre-formatted fragments from the
// launcher directory and copies them through untouched.
package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dshills/buildscan/internal/build/scrape"
)

// Time formats used in the report header and footer.
const (
	DateTimeLayout = "Jan 02 15:04 MST"
)

// Document is everything needed to write a Build element.
type Document struct {
	Command   string
	StartTime time.Time
	EndTime   time.Time

	Selection       Selection
	Instrumentation *Instrumentation
}

// Site is the envelope of a standalone report file.
type Site struct {
	Name      string
	BuildName string
	BuildID   string
	Generator string
}

// ReportIOError is returned when the report destination cannot be written.
type ReportIOError struct {
	Path string
	Op   string
	Err  error
}

func (e *ReportIOError) Error() string {
	return fmt.Sprintf("report %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ReportIOError) Unwrap() error {
	return e.Err
}

type eventXML struct {
	BuildLogLine     int    `xml:"BuildLogLine"`
	Text             string `xml:"Text"`
	SourceFile       string `xml:"SourceFile,omitempty"`
	SourceLineNumber *int   `xml:"SourceLineNumber,omitempty"`
	PreContext       string `xml:"PreContext"`
	PostContext      string `xml:"PostContext"`
	RepeatCount      int    `xml:"RepeatCount"`
}

func toEventXML(ev *scrape.BuildEvent) eventXML {
	x := eventXML{
		BuildLogLine: ev.LogLine,
		Text:         ev.Text,
		PreContext:   ev.PreContextText(),
		PostContext:  ev.PostContextText(),
		RepeatCount:  ev.RepeatCount,
	}
	if ev.SourceFile != "" {
		line := ev.SourceLine
		x.SourceFile = ev.SourceFile
		x.SourceLineNumber = &line
	}
	return x
}

type countXML struct {
	Found    int `xml:"found,attr"`
	Reported int `xml:"reported,attr"`
}

type summaryXML struct {
	Errors   countXML `xml:"Errors"`
	Warnings countXML `xml:"Warnings"`
}

// xmlWriter wraps an encoder and remembers the first error, so element
// helpers can be chained without checking each call.
type xmlWriter struct {
	w   io.Writer
	enc *xml.Encoder
	err error
}

func newXMLWriter(w io.Writer) *xmlWriter {
	enc := xml.NewEncoder(w)
	enc.Indent("", "\t")
	return &xmlWriter{w: w, enc: enc}
}

func (x *xmlWriter) start(name string, attrs ...xml.Attr) {
	if x.err == nil {
		x.err = x.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
	}
}

func (x *xmlWriter) end(name string) {
	if x.err == nil {
		x.err = x.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
	}
}

func (x *xmlWriter) element(name string, v any) {
	if x.err == nil {
		x.err = x.enc.EncodeElement(v, xml.StartElement{Name: xml.Name{Local: name}})
	}
}

func (x *xmlWriter) empty(name string, attrs ...xml.Attr) {
	x.start(name, attrs...)
	x.end(name)
}

// raw writes pre-formatted markup between elements.
func (x *xmlWriter) raw(data []byte) {
	if x.err == nil {
		x.err = x.enc.Flush()
	}
	if x.err == nil {
		_, x.err = io.WriteString(x.w, "\n")
	}
	if x.err == nil {
		_, x.err = x.w.Write(data)
	}
}

func (x *xmlWriter) flush() error {
	if x.err == nil {
		x.err = x.enc.Flush()
	}
	return x.err
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// Write writes doc as a Build element.
func Write(w io.Writer, doc *Document) error {
	x := newXMLWriter(w)
	writeBuild(x, doc)
	return x.flush()
}

func writeBuild(x *xmlWriter, doc *Document) {
	x.start("Build")

	x.element("StartDateTime", doc.StartTime.Format(DateTimeLayout))
	x.element("StartBuildTime", doc.StartTime.Unix())
	x.element("BuildCommand", doc.Command)

	for _, ev := range doc.Selection.Events {
		name := "Warning"
		if ev.IsError() {
			name = "Error"
		}
		x.element(name, toEventXML(ev))
	}
	for _, f := range doc.Selection.Fragments {
		x.raw(f.Body)
	}

	writeInstrumentation(x, doc.Instrumentation)

	x.empty("Log", attr("Encoding", "base64"), attr("Compression", "bin/gzip"))

	x.element("EndDateTime", doc.EndTime.Format(DateTimeLayout))
	x.element("EndBuildTime", doc.EndTime.Unix())
	x.element("ElapsedMinutes", int64(doc.EndTime.Sub(doc.StartTime)/time.Minute))

	sel := doc.Selection
	x.element("Summary", summaryXML{
		Errors:   countXML{Found: sel.ErrorsFound, Reported: sel.ErrorsReported},
		Warnings: countXML{Found: sel.WarningsFound, Reported: sel.WarningsReported},
	})

	x.end("Build")
}

func writeInstrumentation(x *xmlWriter, in *Instrumentation) {
	if in.Empty() {
		return
	}

	if len(in.Targets) > 0 {
		x.start("Targets")
		for _, t := range in.Targets {
			x.start("Target", attr("name", t.Name), attr("type", t.Type))
			if len(t.Labels) > 0 {
				x.start("Labels")
				for _, l := range t.Labels {
					x.element("Label", l)
				}
				x.end("Labels")
			}
			for _, s := range t.Snippets {
				writeSnippet(x, s)
			}
			x.end("Target")
		}
		x.end("Targets")
	}

	if len(in.Commands) > 0 {
		x.start("Commands")
		for _, s := range in.Commands {
			writeSnippet(x, s)
		}
		x.end("Commands")
	}
}

func writeSnippet(x *xmlWriter, s Snippet) {
	name := elementName(s.Role)
	attrs := make([]xml.Attr, 0, len(s.Attrs))
	for _, a := range s.Attrs {
		attrs = append(attrs, attr(a.Name, a.Value))
	}
	x.start(name, attrs...)

	if len(s.Outputs) > 0 {
		x.start("Outputs")
		for _, o := range s.Outputs {
			oa := []xml.Attr{attr("name", o.Name)}
			if o.Size != "" {
				oa = append(oa, attr("size", o.Size))
			}
			x.empty("Output", oa...)
		}
		x.end("Outputs")
	}

	for _, m := range s.Measurements {
		x.start("NamedMeasurement", attr("type", "numeric/double"), attr("name", m.Name))
		x.element("Value", m.Value)
		x.end("NamedMeasurement")
	}

	x.end(name)
}

// WriteFile writes doc as a standalone file wrapped in a Site element. The
// file is written to a temporary name and renamed into place, so a failed
// write leaves nothing at path.
func WriteFile(path string, site Site, doc *Document) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &ReportIOError{Path: path, Op: "create", Err: err}
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := io.WriteString(tmp, xml.Header); err != nil {
		return &ReportIOError{Path: path, Op: "write", Err: err}
	}

	x := newXMLWriter(tmp)
	x.start("Site",
		attr("BuildName", site.BuildName),
		attr("BuildStamp", doc.StartTime.UTC().Format("20060102-1504")),
		attr("Name", site.Name),
		attr("Generator", site.Generator),
		attr("BuildID", site.BuildID),
	)
	writeBuild(x, doc)
	x.end("Site")
	if err := x.flush(); err != nil {
		return &ReportIOError{Path: path, Op: "write", Err: err}
	}
	if _, err := io.WriteString(tmp, "\n"); err != nil {
		return &ReportIOError{Path: path, Op: "write", Err: err}
	}

	if err := tmp.Sync(); err != nil {
		return &ReportIOError{Path: path, Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &ReportIOError{Path: path, Op: "close", Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return &ReportIOError{Path: path, Op: "rename", Err: err}
	}
	return nil
}

// FormatCount renders a found count, noting how many were reported when
// a cap cut the list short.
func FormatCount(found, reported int) string {
	if found == reported {
		return strconv.Itoa(found)
	}
	return fmt.Sprintf("%d (%d reported)", found, reported)
}
