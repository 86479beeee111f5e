package launch

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ExitReport describes a build command that failed without any launcher
// having reported a more specific problem.
type ExitReport struct {
	Args     []string
	Dir      string
	ExitCode int

	// Output is the raw build output, if it was kept.
	Output string
}

type failureXML struct {
	XMLName xml.Name   `xml:"Failure"`
	Type    string     `xml:"type,attr"`
	Action  actionXML  `xml:"Action"`
	Command commandXML `xml:"Command"`
	Result  resultXML  `xml:"Result"`
}

type actionXML struct {
	WorkingDirectory string `xml:"WorkingDirectory"`
}

type commandXML struct {
	Arguments []string `xml:"Argument"`
}

type resultXML struct {
	StdOut        string `xml:"StdOut"`
	StdErr        string `xml:"StdErr"`
	ExitCondition int    `xml:"ExitCondition"`
}

// WriteExitFragment writes r as a new error fragment in dir and returns
// its path.
func WriteExitFragment(dir string, r ExitReport) (string, error) {
	doc := failureXML{
		Type:    "Error",
		Action:  actionXML{WorkingDirectory: r.Dir},
		Command: commandXML{Arguments: r.Args},
		Result: resultXML{
			StdOut:        r.Output,
			ExitCondition: r.ExitCode,
		},
	}

	data, err := xml.MarshalIndent(doc, "\t\t", "\t")
	if err != nil {
		return "", fmt.Errorf("encode exit fragment: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create launcher directory: %w", err)
	}

	path := filepath.Join(dir, ErrorPrefix+uuid.NewString()+Suffix)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write exit fragment: %w", err)
	}
	return path, nil
}
