package preprocessor

import (
	"fmt"
	"os"
	"strings"
)

// Environment is the variable store behind %VAR% and {VAR} references and
// non-macro #define directives.
type Environment interface {
	Lookup(name string) (string, bool)
	Set(name, value string) error
}

// OSEnv reads and writes the process environment.
type OSEnv struct{}

func (OSEnv) Lookup(name string) (string, bool) { return os.LookupEnv(name) }
func (OSEnv) Set(name, value string) error      { return os.Setenv(name, value) }

// MapEnv is an in-memory Environment.
type MapEnv map[string]string

func (m MapEnv) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func (m MapEnv) Set(name, value string) error {
	m[name] = value
	return nil
}

// ExpandEnv replaces %NAME% and {NAME} references with their values from env.
// "%%" yields a single '%'. A reference to an unset variable is kept verbatim
// unless failOnUndefined is set.
func ExpandEnv(line string, env Environment, failOnUndefined bool) (string, error) {
	if strings.IndexAny(line, "%{") < 0 {
		return line, nil
	}
	var b strings.Builder
	for i := 0; i < len(line); {
		ch := line[i]
		if ch != '%' && ch != '{' {
			b.WriteByte(ch)
			i++
			continue
		}
		if ch == '%' && i+1 < len(line) && line[i+1] == '%' {
			b.WriteByte('%')
			i += 2
			continue
		}
		closer := byte('%')
		if ch == '{' {
			closer = '}'
		}
		j := strings.IndexByte(line[i+1:], closer)
		if j < 0 {
			b.WriteByte(ch)
			i++
			continue
		}
		name := line[i+1 : i+1+j]
		if !isName(name) {
			b.WriteByte(ch)
			i++
			continue
		}
		end := i + j + 2
		if v, ok := env.Lookup(name); ok {
			b.WriteString(v)
		} else if failOnUndefined {
			return "", fmt.Errorf("%w %q", ErrUndefined, name)
		} else {
			b.WriteString(line[i:end])
		}
		i = end
	}
	return b.String(), nil
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}
