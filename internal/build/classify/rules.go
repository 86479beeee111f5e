package classify

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Kind is the verdict for a single line of output.
type Kind int

const (
	// Regular is a line that is neither an error nor a warning.
	Regular Kind = iota
	// Warning is a line reported as a warning.
	Warning
	// Error is a line reported as an error.
	Error
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Regular:
		return "regular"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Category is the ordered match and exception lists for one kind.
type Category struct {
	Match     []string `toml:"match"`
	Exception []string `toml:"exception"`
}

// LocationRule extracts a source location from event text.
type LocationRule struct {
	// Pattern is the regular expression.
	Pattern string `toml:"pattern"`

	// File is the capture group holding the file path.
	File int `toml:"file"`

	// Line is the capture group holding the line number.
	Line int `toml:"line"`
}

// RuleSet is the complete set of classification and location rules.
// Order is evaluation order.
type RuleSet struct {
	Version  int            `toml:"version"`
	Error    Category       `toml:"error"`
	Warning  Category       `toml:"warning"`
	Location []LocationRule `toml:"location"`
}

//go:embed patterns.toml
var builtinTable []byte

var loadBuiltin = sync.OnceValues(func() (RuleSet, error) {
	var rs RuleSet
	if err := toml.Unmarshal(builtinTable, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("decoding built-in rules: %w", err)
	}
	return rs, nil
})

// Builtin returns a private copy of the built-in rule tables.
func Builtin() RuleSet {
	rs, err := loadBuiltin()
	if err != nil {
		// The table is embedded, so this only fails on a broken build.
		panic(err)
	}
	return rs.Clone()
}

// Clone returns a deep copy of the rule set.
func (rs RuleSet) Clone() RuleSet {
	return RuleSet{
		Version: rs.Version,
		Error: Category{
			Match:     append([]string(nil), rs.Error.Match...),
			Exception: append([]string(nil), rs.Error.Exception...),
		},
		Warning: Category{
			Match:     append([]string(nil), rs.Warning.Match...),
			Exception: append([]string(nil), rs.Warning.Exception...),
		},
		Location: append([]LocationRule(nil), rs.Location...),
	}
}

// Append adds project rules after the existing rules of a category.
// Appending to Regular is a no-op.
func (rs *RuleSet) Append(kind Kind, matches, exceptions []string) {
	var c *Category
	switch kind {
	case Error:
		c = &rs.Error
	case Warning:
		c = &rs.Warning
	default:
		return
	}
	c.Match = append(c.Match, matches...)
	c.Exception = append(c.Exception, exceptions...)
}
