package preprocessor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const DefaultMaxDepth = 32

// Options controls line normalization and directive handling.
type Options struct {
	CommentMarker   string
	CommentAnywhere bool
	SlashComments   bool
	NoTrim          bool
	KeepBlankLines  bool
	ExpandEnv       bool
	MacroLanguage   bool
	FailOnUndefined bool
	IncludeDirs     []string
	IncludeEnv      string
	MaxDepth        int
	Env             Environment
	Macros          *Macros
}

// Sink receives the output of a load: every file entered, every line that
// survives the conditional stack, and recoverable diagnostics.
type Sink interface {
	File(name string)
	Line(pos Pos, text string) error
	Warn(pos Pos, msg string) error
}

// Preprocessor reads INI-style sources for one top-level load. It is not
// safe for concurrent use; separate loads need separate Preprocessors.
type Preprocessor struct {
	opts              Options
	env               Environment
	macros            *Macros
	cond              *condStack
	sink              Sink
	includeStackGuard map[string]bool
}

func New(opts Options, sink Sink) *Preprocessor {
	if opts.CommentMarker == "" {
		opts.CommentMarker = ";"
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	p := &Preprocessor{
		opts:              opts,
		env:               opts.Env,
		macros:            opts.Macros,
		sink:              sink,
		includeStackGuard: map[string]bool{},
	}
	if p.env == nil {
		p.env = OSEnv{}
	}
	if p.macros == nil {
		p.macros = NewMacros()
	}
	return p
}

// Define applies NAME=VALUE the way a #define directive would.
func (p *Preprocessor) Define(name, value string) error {
	if p.opts.MacroLanguage {
		p.macros.Define(name, value)
		return nil
	}
	return p.env.Set(name, value)
}

// ProcessFile loads a top-level file.
func (p *Preprocessor) ProcessFile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return newError(KindIO, Pos{File: filename}, err)
	}
	defer f.Close()
	return p.Process(filename, f)
}

// Process loads a top-level source read from r. Includes are resolved
// relative to filename.
func (p *Preprocessor) Process(filename string, r io.Reader) error {
	p.cond = newCondStack(p.opts.MaxDepth)
	if err := p.process(filename, r); err != nil {
		return err
	}
	if p.cond.Depth() != 0 {
		return newError(KindDirective, p.cond.Unclosed(), ErrUnterminatedIf)
	}
	return nil
}

func (p *Preprocessor) process(filename string, r io.Reader) error {
	key := guardKey(filename)
	p.includeStackGuard[key] = true
	defer delete(p.includeStackGuard, key)

	p.sink.File(filename)
	lr := newLineReader(r)
	lineNo := 0
	for {
		raw, ok, err := lr.next()
		if err != nil {
			return newError(KindIO, Pos{File: filename, Line: lineNo}, err)
		}
		if !ok {
			return nil
		}
		lineNo++
		pos := Pos{File: filename, Line: lineNo}

		// directives are recognized before expansion; each one expands
		// only the part it uses, and only when it is evaluated
		if hasDirectivePrefix(raw) {
			if d, ok := parseDirective(p.clean(raw)); ok {
				if err := p.handleDirective(d, pos); err != nil {
					return err
				}
				continue
			}
		}
		if !p.cond.Active() {
			continue
		}
		line, keep, err := p.normalize(raw, pos)
		if err != nil {
			return err
		}
		if !keep {
			continue
		}
		if err := p.sink.Line(pos, line); err != nil {
			return err
		}
	}
}

// normalize expands, trims and strips comments from one raw line. keep is
// false when the line should be dropped.
func (p *Preprocessor) normalize(line string, pos Pos) (string, bool, error) {
	line, err := p.expand(line, pos)
	if err != nil {
		return "", false, err
	}
	line = p.clean(line)
	if line == "" && !p.opts.KeepBlankLines {
		return "", false, nil
	}
	return line, true, nil
}

// clean trims line and strips its comments.
func (p *Preprocessor) clean(line string) string {
	if !p.opts.NoTrim {
		line = strings.TrimSpace(line)
	}
	stripped := false
	if p.opts.SlashComments {
		if i := indexUnquoted(line, "//"); i >= 0 {
			line, stripped = line[:i], true
		}
	}
	marker := p.opts.CommentMarker
	if p.opts.CommentAnywhere {
		if i := indexUnquoted(line, marker); i >= 0 {
			line, stripped = line[:i], true
		}
	} else if strings.HasPrefix(strings.TrimLeft(line, " \t"), marker) {
		line, stripped = "", true
	}
	if stripped {
		line = strings.TrimRight(line, " \t")
	}
	return line
}

// expand runs s through the macro table or the environment, whichever is
// enabled. A macro failure is a warning unless FailOnUndefined is set; the
// sink may still turn the warning into an error.
func (p *Preprocessor) expand(s string, pos Pos) (string, error) {
	if p.opts.MacroLanguage {
		out, err := p.macros.Substitute(s, pos)
		if err != nil {
			if p.opts.FailOnUndefined {
				return "", newError(KindExpand, pos, err)
			}
			if err := p.sink.Warn(pos, err.Error()); err != nil {
				return "", err
			}
			return s, nil
		}
		return out, nil
	}
	if !p.opts.ExpandEnv {
		return s, nil
	}
	out, err := ExpandEnv(s, p.env, p.opts.FailOnUndefined)
	if err != nil {
		return "", newError(KindExpand, pos, err)
	}
	return out, nil
}

type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

func (lr *lineReader) next() (string, bool, error) {
	s, err := lr.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false, err
	}
	if len(s) == 0 && err == io.EOF {
		return "", false, nil
	}
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, true, nil
}

// indexUnquoted returns the index of the first sep outside double quotes.
func indexUnquoted(s, sep string) int {
	if sep == "" {
		return -1
	}
	quoted := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			quoted = !quoted
		case !quoted && strings.HasPrefix(s[i:], sep):
			return i
		}
	}
	return -1
}

// ---------------- Directives ----------------

type directiveFields struct {
	cmd string
	arg string
}

var directives = map[string]bool{
	"if": true, "elif": true, "else": true, "endif": true,
	"define": true, "include": true, "error": true,
}

func hasDirectivePrefix(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "#")
}

func parseDirective(line string) (directiveFields, bool) {
	trim := strings.TrimSpace(line)
	if !strings.HasPrefix(trim, "#") {
		return directiveFields{}, false
	}
	d := splitDirective(trim)
	if !directives[d.cmd] {
		return directiveFields{}, false
	}
	return d, true
}

func splitDirective(trim string) directiveFields {
	// trim begins with '#'
	trim = strings.TrimSpace(trim[1:])
	if trim == "" {
		return directiveFields{}
	}
	sp := strings.Fields(trim)
	cmd := sp[0]
	arg := strings.TrimSpace(trim[len(cmd):])
	return directiveFields{cmd: cmd, arg: arg}
}

func (p *Preprocessor) handleDirective(d directiveFields, pos Pos) error {
	cond := func() (bool, error) {
		expr, err := p.expand(d.arg, pos)
		if err != nil {
			return false, err
		}
		return evalCondition(expr), nil
	}
	var err error
	switch d.cmd {
	case "if":
		err = p.cond.If(cond, pos)
	case "elif":
		err = p.cond.Elif(cond)
	case "else":
		err = p.cond.Else()
	case "endif":
		err = p.cond.Endif()
	}
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return err
		}
		return newError(KindDirective, pos, err)
	}
	if !p.cond.Active() {
		return nil
	}

	switch d.cmd {
	case "define":
		return p.define(d.arg, pos)
	case "include":
		return p.include(d.arg, pos)
	case "error":
		msg, err := p.expand(d.arg, pos)
		if err != nil {
			return err
		}
		return newError(KindUser, pos, fmt.Errorf("%w %s", ErrErrorDirective, msg))
	}
	return nil
}

func (p *Preprocessor) define(arg string, pos Pos) error {
	name, params, body, ok := parseDefineDirective(arg)
	if !ok || (params != nil && !p.opts.MacroLanguage) {
		return newError(KindDirective, pos, fmt.Errorf("bad #define: %q", arg))
	}
	if params != nil {
		p.macros.DefineFunc(name, params, body)
		return nil
	}
	body, err := p.expand(body, pos)
	if err != nil {
		return err
	}
	if err := p.Define(name, body); err != nil {
		return newError(KindDirective, pos, err)
	}
	return nil
}

func (p *Preprocessor) include(arg string, pos Pos) error {
	arg, err := p.expand(arg, pos)
	if err != nil {
		return err
	}
	name, ok := parseIncludeArg(arg)
	if !ok {
		return newError(KindInclude, pos, fmt.Errorf("bad #include syntax: %q", arg))
	}
	resolved, err := p.resolveInclude(name, pos.File)
	if err != nil {
		return newError(KindInclude, pos, err)
	}
	if p.includeStackGuard[guardKey(resolved)] {
		return newError(KindInclude, pos, fmt.Errorf("%w at %q", ErrIncludeCycle, resolved))
	}
	f, err := os.Open(resolved)
	if err != nil {
		return newError(KindInclude, pos, err)
	}
	defer f.Close()
	return p.process(resolved, f)
}

func parseIncludeArg(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if len(arg) >= 2 && arg[0] == '"' && arg[len(arg)-1] == '"' {
		return arg[1 : len(arg)-1], true
	}
	if len(arg) >= 2 && arg[0] == '<' && arg[len(arg)-1] == '>' {
		return arg[1 : len(arg)-1], true
	}
	return "", false
}

// parseDefineDirective splits "NAME VALUE", "NAME=VALUE" or
// "NAME(a, b) body". A bare NAME is defined as "1".
func parseDefineDirective(arg string) (name string, params []string, body string, ok bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" || !isIdentStart(arg[0]) {
		return "", nil, "", false
	}
	i := 1
	for i < len(arg) && isIdentPart(arg[i]) {
		i++
	}
	name = arg[:i]
	rest := arg[i:]

	// function-like only if '(' immediately follows name
	if strings.HasPrefix(rest, "(") {
		j := strings.Index(rest, ")")
		if j < 0 {
			return "", nil, "", false
		}
		paramStr := rest[1:j]
		body = strings.TrimSpace(rest[j+1:])
		if strings.TrimSpace(paramStr) == "" {
			return name, []string{}, body, true
		}
		raw := strings.Split(paramStr, ",")
		params = make([]string, 0, len(raw))
		for _, r := range raw {
			params = append(params, strings.TrimSpace(r))
		}
		return name, params, body, true
	}
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' && rest[0] != '=' {
		return "", nil, "", false
	}
	body = strings.TrimSpace(rest)
	if strings.HasPrefix(body, "=") {
		body = strings.TrimSpace(body[1:])
	}
	if body == "" {
		body = "1"
	}
	return name, nil, body, true
}

// ParseDefine splits a NAME=VALUE command line definition.
func ParseDefine(s string) (name, value string) {
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, "1"
}

// ---------------- Include resolution ----------------

// resolveInclude looks for name in the working directory, then next to the
// including file, then along the include search path.
func (p *Preprocessor) resolveInclude(name, includingFile string) (string, error) {
	if filepath.IsAbs(name) {
		if fileExists(name) {
			return filepath.Clean(name), nil
		}
		return "", fmt.Errorf("%w: %q", ErrIncludeNotFound, name)
	}
	if fileExists(name) {
		return filepath.Clean(name), nil
	}
	if includingFile != "" && includingFile != "-" {
		cand := filepath.Join(filepath.Dir(includingFile), name)
		if fileExists(cand) {
			return filepath.Clean(cand), nil
		}
	}
	for _, dir := range p.searchPath() {
		cand := filepath.Join(dir, name)
		if fileExists(cand) {
			return filepath.Clean(cand), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrIncludeNotFound, name)
}

func (p *Preprocessor) searchPath() []string {
	dirs := p.opts.IncludeDirs
	if p.opts.IncludeEnv != "" {
		if list, ok := p.env.Lookup(p.opts.IncludeEnv); ok && list != "" {
			dirs = append(append([]string{}, dirs...), filepath.SplitList(list)...)
		}
	}
	return dirs
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func guardKey(name string) string {
	if abs, err := filepath.Abs(name); err == nil {
		return abs
	}
	return name
}
