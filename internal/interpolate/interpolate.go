// Package interpolate implements the ${{VAR}} expansion described in
// spec §4.11: a two-pass replacement (variables, then secrets) that
// returns both the transformed string and the list of (value, name)
// replacer pairs needed to sanitize the value back out of any log that
// later embeds it.
package interpolate

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\$\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Source resolves a NAME to its value. internal/store's Variable
// collection backs the concrete instance Core uses; secrets and plain
// variables share the same lookup shape, distinguished only by which
// Source a given interpolation pass is given.
type Source interface {
	// Lookup returns the value for name and whether it was found.
	Lookup(name string) (value string, ok bool)
}

// MapSource is a Source backed by a plain map, primarily for tests.
type MapSource map[string]string

func (m MapSource) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Replacer is one (value, name) pair captured during interpolation. Given
// a log line containing the raw value, replacing it with the bracketed
// name restores the original ${{NAME}} token — "sanitization is exact"
// (spec §8 Testable Property 10).
type Replacer struct {
	Value string
	Name  string
}

// Sanitize applies every captured replacer to s, turning raw secret/
// variable values embedded in command output back into their token form
// before the string is written to an Update log.
func Sanitize(s string, replacers []Replacer) string {
	out := s
	for _, r := range replacers {
		if r.Value == "" {
			continue
		}
		out = strings.ReplaceAll(out, r.Value, "${{"+r.Name+"}}")
	}
	return out
}

// Interpolate runs the two-pass replacement over input: first vars, then
// secrets, returning the expanded string and every replacer captured
// across both passes in application order.
func Interpolate(input string, vars, secrets Source) (string, []Replacer) {
	out, r1 := pass(input, vars)
	out, r2 := pass(out, secrets)
	return out, append(r1, r2...)
}

func pass(input string, source Source) (string, []Replacer) {
	if source == nil {
		return input, nil
	}
	var replacers []Replacer
	out := tokenPattern.ReplaceAllStringFunc(input, func(tok string) string {
		m := tokenPattern.FindStringSubmatch(tok)
		name := m[1]
		val, ok := source.Lookup(name)
		if !ok {
			return tok
		}
		replacers = append(replacers, Replacer{Value: val, Name: name})
		return val
	})
	return out, replacers
}
