// Package specparse extracts the metadata header of a CI component template:
// an optional description and the ordered list of declared inputs.
//
// Component templates are an informal YAML dialect and frequently malformed,
// so parsing is a line-oriented state machine rather than a YAML decode: a
// bad line is skipped, never fatal, and a partially valid header still yields
// every parameter that could be read.
package specparse

import (
	"regexp"
	"strconv"
	"strings"

	"ci-component-catalog/internal/domain"
)

// Result is the parsed header of one template file.
type Result struct {
	Description string
	Parameters  []domain.Parameter
}

var topLevelKeyPattern = regexp.MustCompile(`^[a-zA-Z][\w-]*:`)
var keyLinePattern = regexp.MustCompile(`^([A-Za-z_][\w-]*):(.*)$`)

// Parse reads raw template text and returns its description and parameters.
// Only the section before the first document separator ("---" alone on a
// line) is scanned; job definitions after the separator must never
// contribute parameters. Parse never fails: at worst the result is empty.
func Parse(text string) Result {
	lines := leadingSection(text)

	params, foundInputs := parseInputs(lines)
	if !foundInputs {
		params = parseVariables(lines)
	}

	desc := specDescription(lines)
	if desc == "" {
		desc = leadingComment(lines)
	}

	return Result{Description: desc, Parameters: params}
}

// leadingSection returns the lines before the first "---" separator.
func leadingSection(text string) []string {
	all := strings.Split(text, "\n")
	for i, line := range all {
		if strings.TrimSpace(line) == "---" {
			return all[:i]
		}
	}
	return all
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		if r != ' ' {
			break
		}
		n++
	}
	return n
}

// stripQuotes removes one matching pair of surrounding quotes and reports
// whether the value was quoted.
func stripQuotes(s string) (string, bool) {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1], true
		}
	}
	return s, false
}

// inputs parser states
const (
	stateOutside = iota
	stateInSpec
	stateInInputs
)

// parseInputs walks the leading section looking for an inputs: block nested
// under a top-level spec: key. Indentation is measured relative to the
// inputs: line itself, which reconciles the 2-space and 4-space layouts seen
// in the wild. Returns the parameters and whether an inputs block was found
// at all.
func parseInputs(lines []string) ([]domain.Parameter, bool) {
	state := stateOutside
	inputsIndent := -1
	paramIndent := -1

	var params []domain.Parameter
	var current *domain.Parameter
	currentType := ""
	rawDefault := ""
	defaultQuoted := false
	hasDefault := false

	flush := func() {
		if current == nil {
			return
		}
		if hasDefault {
			// the declared type drives the conversion; untyped values are
			// inferred from their shape
			current.Default = typedDefault(rawDefault, defaultQuoted, currentType)
		}
		current.Type = currentType
		if current.Type == "" {
			current.Type = "string"
		}
		if current.Description == "" {
			current.Description = "Parameter: " + current.Name
		}
		params = append(params, *current)
		current = nil
	}

	startParam := func(name string) {
		flush()
		current = &domain.Parameter{Name: name}
		currentType = ""
		rawDefault = ""
		defaultQuoted = false
		hasDefault = false
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := indentOf(line)

		// A fresh top-level key ends whatever block we were in.
		if indent == 0 && topLevelKeyPattern.MatchString(line) {
			if state == stateInInputs {
				flush()
				return params, true
			}
			if trimmed == "spec:" {
				state = stateInSpec
			} else {
				state = stateOutside
			}
			continue
		}

		switch state {
		case stateInSpec:
			if strings.TrimSuffix(trimmed, ":") == "inputs" && strings.HasSuffix(trimmed, ":") {
				state = stateInInputs
				inputsIndent = indent
				paramIndent = -1
			}

		case stateInInputs:
			if indent <= inputsIndent {
				// dedent back to a sibling of inputs: (e.g. a spec-level
				// description) terminates the block
				flush()
				return params, true
			}
			m := keyLinePattern.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			key, rest := m[1], strings.TrimSpace(m[2])

			if paramIndent == -1 {
				paramIndent = indent
			}
			switch {
			case indent == paramIndent:
				if rest != "" {
					// a parameter name is a bare mapping key; anything else
					// is malformed and skipped
					continue
				}
				startParam(key)
			case indent > paramIndent && current != nil:
				value, quoted := stripQuotes(rest)
				switch key {
				case "description":
					current.Description = value
				case "type":
					currentType = value
				case "required":
					current.Required = value == "true"
				case "default":
					rawDefault = value
					defaultQuoted = quoted
					hasDefault = true
				}
			}
		}
	}

	if state == stateInInputs {
		flush()
		return params, true
	}
	return nil, false
}

// typedDefault converts a scalar default into the tagged union, honouring a
// declared type and falling back to shape inference for untyped values.
func typedDefault(raw string, quoted bool, paramType string) domain.DefaultValue {
	switch paramType {
	case "string":
		return domain.StringVal(raw)
	case "boolean":
		if b, err := strconv.ParseBool(raw); err == nil {
			return domain.BoolVal(b)
		}
		return domain.StringVal(raw)
	case "number":
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return domain.NumberVal(n)
		}
		return domain.StringVal(raw)
	}
	if !quoted {
		if raw == "true" || raw == "false" {
			return domain.BoolVal(raw == "true")
		}
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return domain.NumberVal(n)
		}
	}
	return domain.StringVal(raw)
}

// parseVariables is the legacy fallback for templates that predate the
// spec/inputs header: a flat top-level variables: block where every
// key: value pair becomes a string parameter.
func parseVariables(lines []string) []domain.Parameter {
	var params []domain.Parameter
	inVariables := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := indentOf(line)

		if indent == 0 && topLevelKeyPattern.MatchString(line) {
			if inVariables {
				break
			}
			inVariables = trimmed == "variables:"
			continue
		}
		if !inVariables || indent == 0 {
			continue
		}

		m := keyLinePattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		name := m[1]
		value, _ := stripQuotes(strings.TrimSpace(m[2]))

		p := domain.Parameter{
			Name:        name,
			Description: "Parameter: " + name,
			Type:        "string",
		}
		if value != "" {
			p.Default = domain.StringVal(value)
		}
		params = append(params, p)
	}

	return params
}

// specDescription finds a description: scalar declared directly under the
// top-level spec: key (a sibling of inputs:, whatever side of it). The first
// match wins.
func specDescription(lines []string) string {
	inSpec := false
	specChildIndent := -1

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := indentOf(line)

		if indent == 0 && topLevelKeyPattern.MatchString(line) {
			if inSpec {
				return ""
			}
			inSpec = trimmed == "spec:"
			continue
		}
		if !inSpec {
			continue
		}
		if specChildIndent == -1 {
			specChildIndent = indent
		}
		if indent != specChildIndent {
			continue
		}
		if rest, ok := strings.CutPrefix(trimmed, "description:"); ok {
			value, _ := stripQuotes(strings.TrimSpace(rest))
			if value != "" {
				return value
			}
		}
	}
	return ""
}

// leadingComment falls back to the first top-of-file comment that is not
// boilerplate naming the platform itself.
func leadingComment(lines []string) string {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			return ""
		}
		text := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		if text == "" {
			continue
		}
		if strings.Contains(strings.ToLower(text), "gitlab") {
			continue
		}
		return text
	}
	return ""
}
