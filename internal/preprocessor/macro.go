package preprocessor

import (
	"bytes"
	"strconv"
	"strings"
)

// maxNesting bounds how deeply one expansion may contain another.
const maxNesting = 100

// Macros is the variable table of the macro language: object-like and
// function-like definitions substituted by identifier outside double quotes.
type Macros struct {
	obj map[string]string
	fn  map[string]FnMacro
}

type FnMacro struct {
	Params []string
	Body   string
}

func NewMacros() *Macros {
	return &Macros{
		obj: map[string]string{},
		fn:  map[string]FnMacro{},
	}
}

// Define registers an object-like macro, replacing any earlier definition.
func (m *Macros) Define(name, value string) {
	delete(m.fn, name)
	m.obj[name] = value
}

// DefineFunc registers a function-like macro, replacing any earlier definition.
func (m *Macros) DefineFunc(name string, params []string, body string) {
	delete(m.obj, name)
	m.fn[name] = FnMacro{Params: params, Body: body}
}

func (m *Macros) Undefine(name string) {
	delete(m.obj, name)
	delete(m.fn, name)
}

func (m *Macros) IsDefined(name string) bool {
	_, ok1 := m.obj[name]
	_, ok2 := m.fn[name]
	return ok1 || ok2
}

// Lookup returns the body of an object-like macro.
func (m *Macros) Lookup(name string) (string, bool) {
	v, ok := m.obj[name]
	return v, ok
}

// Substitute expands every macro reference in line. __FILE__ and __LINE__
// expand to the position of the line being read unless redefined.
func (m *Macros) Substitute(line string, pos Pos) (string, error) {
	exp := expander{m: m, pos: pos}
	return exp.expand(line)
}

type expander struct {
	m     *Macros
	pos   Pos
	stack []inputChunk
}

// inputChunk is text still to be read. depth counts the expansions that
// produced it; the line itself is depth 0.
type inputChunk struct {
	s     string
	i     int
	depth int
}

func (e *expander) builtin(name string) (string, bool) {
	switch name {
	case "__FILE__":
		return e.pos.File, true
	case "__LINE__":
		return strconv.Itoa(e.pos.Line), true
	}
	return "", false
}

func (e *expander) expand(line string) (string, error) {
	e.stack = []inputChunk{{s: line}}
	var b bytes.Buffer
	for {
		ch, ok := e.next()
		if !ok {
			break
		}
		if ch == '"' {
			b.WriteByte(ch)
			e.copyString(&b)
			continue
		}
		if !isIdentStart(ch) {
			b.WriteByte(ch)
			continue
		}
		depth := e.stack[len(e.stack)-1].depth + 1
		name := e.readIdent(ch)
		if macro, ok := e.m.fn[name]; ok && e.peekIs('(') {
			e.next()
			if args, ok := e.readArgs(); ok {
				if err := e.pushExpansion(applyFnMacro(macro, args), depth); err != nil {
					return "", err
				}
				continue
			}
			b.WriteString(name)
			continue
		}
		if val, ok := e.m.obj[name]; ok {
			if err := e.pushExpansion(val, depth); err != nil {
				return "", err
			}
			continue
		}
		if val, ok := e.builtin(name); ok {
			b.WriteString(val)
			continue
		}
		b.WriteString(name)
	}
	return b.String(), nil
}

func (e *expander) pushExpansion(s string, depth int) error {
	if depth > maxNesting {
		return ErrRecursiveMacro
	}
	if s != "" {
		e.stack = append(e.stack, inputChunk{s: s, depth: depth})
	}
	return nil
}

func (e *expander) next() (byte, bool) {
	for len(e.stack) > 0 {
		top := &e.stack[len(e.stack)-1]
		if top.i >= len(top.s) {
			e.stack = e.stack[:len(e.stack)-1]
			continue
		}
		ch := top.s[top.i]
		top.i++
		return ch, true
	}
	return 0, false
}

func (e *expander) peekIs(b byte) bool {
	ch, ok := e.peekByte()
	return ok && ch == b
}

// readIdent stays inside the chunk first came from, so an expansion that
// ends in an identifier never joins the text after it.
func (e *expander) readIdent(first byte) string {
	var b strings.Builder
	b.WriteByte(first)
	top := &e.stack[len(e.stack)-1]
	for top.i < len(top.s) && isIdentPart(top.s[top.i]) {
		b.WriteByte(top.s[top.i])
		top.i++
	}
	return b.String()
}

func (e *expander) peekByte() (byte, bool) {
	for i := len(e.stack) - 1; i >= 0; i-- {
		chunk := e.stack[i]
		if chunk.i < len(chunk.s) {
			return chunk.s[chunk.i], true
		}
	}
	return 0, false
}

func (e *expander) readArgs() ([]string, bool) {
	var args []string
	var cur bytes.Buffer
	depth := 1
	for {
		ch, ok := e.next()
		if !ok {
			return nil, false
		}
		switch {
		case ch == '"':
			cur.WriteByte(ch)
			e.copyString(&cur)
		case ch == '(':
			depth++
			cur.WriteByte(ch)
		case ch == ')':
			depth--
			if depth == 0 {
				return append(args, strings.TrimSpace(cur.String())), true
			}
			cur.WriteByte(ch)
		case ch == ',' && depth == 1:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
}

func (e *expander) copyString(b *bytes.Buffer) {
	for {
		ch, ok := e.next()
		if !ok {
			return
		}
		b.WriteByte(ch)
		if ch == '\\' {
			if next, ok := e.next(); ok {
				b.WriteByte(next)
			}
			continue
		}
		if ch == '"' {
			return
		}
	}
}

func applyFnMacro(m FnMacro, args []string) string {
	argMap := make(map[string]string, len(m.Params))
	for i, p := range m.Params {
		if i < len(args) {
			argMap[p] = args[i]
		} else {
			argMap[p] = ""
		}
	}
	return replaceIdents(m.Body, argMap)
}

func replaceIdents(s string, repl map[string]string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		ch := s[i]
		if ch == '"' {
			j := i + 1
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			if j < len(s) {
				j++
			} else {
				j = len(s)
			}
			b.WriteString(s[i:j])
			i = j
			continue
		}
		if isIdentStart(ch) {
			j := i + 1
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			name := s[i:j]
			if val, ok := repl[name]; ok {
				b.WriteString(val)
			} else {
				b.WriteString(name)
			}
			i = j
			continue
		}
		b.WriteByte(ch)
		i++
	}
	return b.String()
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}
