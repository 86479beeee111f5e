// Package classify decides whether a line of build output is an error, a
// warning, or regular noise.
//
// # Rules
//
// A RuleSet holds, per category, an ordered list of match expressions and an
// ordered list of exception expressions. A line is tentatively an error when
// any error match expression finds it; the first error exception that also
// finds it cancels that verdict. Warnings are evaluated the same way and
// independently. An error verdict outranks a warning verdict.
//
//	rules := classify.Builtin()
//	rules.Append(classify.Error, []string{`^BUILD FAILED`}, nil)
//
//	c := classify.New(rules, classify.WithLogger(logger))
//	kind := c.Classify(line, classify.Quota{ErrorsOpen: true, WarningsOpen: true})
//
// A category whose quota is closed is skipped entirely; none of its
// expressions are evaluated.
//
// # Built-in Tables
//
// The built-in expressions live in patterns.toml, embedded in the binary.
// They are versioned data: historical reports were produced with exactly
// these expressions, so entries are appended and never edited.
//
// # Source Locations
//
// A Locator extracts a source file and line number from the text of an
// already classified line, and a PathSimplifier rewrites paths under the
// source and build trees so reports do not leak machine-specific prefixes.
package classify
