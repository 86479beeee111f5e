package build

import (
	"errors"
	"os"
	"regexp"
	"strings"
)

// ConfigurationTypeVar is replaced in the build command by the configured
// build type.
const ConfigurationTypeVar = "CONFIGURATION_TYPE"

// DefaultConfigurationType is used when no build type is configured.
const DefaultConfigurationType = "Release"

// ErrUnterminatedQuote is returned for a build command with an open quote.
var ErrUnterminatedQuote = errors.New("unterminated quote in build command")

// variablePattern matches ${name}, ${name:default} and ${env:NAME}.
var variablePattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandVariables substitutes ${name} references from vars. ${env:NAME}
// reads the environment. Unknown names are left as written, so shell
// expansions such as ${HOME:-/tmp} reach the shell untouched.
func expandVariables(input string, vars map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		inner := match[2 : len(match)-1]

		if envPart, ok := strings.CutPrefix(inner, "env:"); ok {
			name, def, _ := strings.Cut(envPart, ":")
			if v := os.Getenv(name); v != "" {
				return v
			}
			return def
		}

		name, def, hasDefault := strings.Cut(inner, ":")
		v, ok := vars[name]
		if !ok {
			return match
		}
		if v == "" && hasDefault {
			return def
		}
		return v
	})
}

// splitArguments splits a command line into arguments. Whitespace
// separates arguments; single quotes preserve everything literally; double
// quotes allow backslash escapes of '"' and '\'; a backslash outside quotes
// escapes the next character.
func splitArguments(cmd string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)

	for _, r := range cmd {
		switch {
		case escaped:
			if quote == '"' && r != '"' && r != '\\' {
				cur.WriteByte('\\')
			}
			cur.WriteRune(r)
			escaped = false

		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}

		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}

		case r == '\'' || r == '"':
			quote = r
			inArg = true

		case r == '\\':
			escaped = true
			inArg = true

		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}

		default:
			cur.WriteRune(r)
			inArg = true
		}
	}

	if quote != 0 || escaped {
		return nil, ErrUnterminatedQuote
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
