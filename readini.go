/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package readini reads INI-style configuration files through a small
// preprocessor (#if/#elif/#else/#endif, #define, #include, #error) and
// answers queries against the sections it collected.
package readini

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fwessels/readini/internal/preprocessor"
)

type (
	Error       = preprocessor.Error
	Kind        = preprocessor.Kind
	Pos         = preprocessor.Pos
	Environment = preprocessor.Environment
	MapEnv      = preprocessor.MapEnv
	OSEnv       = preprocessor.OSEnv
)

const (
	KindIO        = preprocessor.KindIO
	KindDirective = preprocessor.KindDirective
	KindInclude   = preprocessor.KindInclude
	KindExpand    = preprocessor.KindExpand
	KindUser      = preprocessor.KindUser
	KindOptions   = preprocessor.KindOptions
	KindSection   = preprocessor.KindSection
)

var (
	ErrMisplacedElif   = preprocessor.ErrMisplacedElif
	ErrMisplacedElse   = preprocessor.ErrMisplacedElse
	ErrMisplacedEndif  = preprocessor.ErrMisplacedEndif
	ErrUnterminatedIf  = preprocessor.ErrUnterminatedIf
	ErrNestingTooDeep  = preprocessor.ErrNestingTooDeep
	ErrIncludeNotFound = preprocessor.ErrIncludeNotFound
	ErrIncludeCycle    = preprocessor.ErrIncludeCycle
	ErrUndefined       = preprocessor.ErrUndefined
	ErrRecursiveMacro  = preprocessor.ErrRecursiveMacro
	ErrErrorDirective  = preprocessor.ErrErrorDirective

	ErrBusy = errors.New("readini: config is already loading")
)

// Config is the tree built from one or more files: an ordered list of
// sections and the distinct files that contributed to them.
type Config struct {
	opts      Options
	sections  []*Section
	filenames []string
	seen      map[string]bool
	diags     []Diagnostic
	macros    *preprocessor.Macros
	loading   atomic.Bool
}

// Section is one [Name] block. Name keeps its section markers.
type Section struct {
	Name  string
	Title string
	Args  string
	File  string
	Line  int
	lines []*Line
}

func (s *Section) Lines() []*Line { return s.lines }

// Line is one configuration line after comment stripping and expansion.
type Line struct {
	Text string
	File string
	Line int
}

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a recoverable problem found while loading.
type Diagnostic struct {
	Severity Severity
	File     string
	Line     int
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.Severity, d.Message)
}

// NewConfig returns an empty Config that reads files with opts.
func NewConfig(opts Options) (*Config, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Config{
		opts:   opts.withDefaults(),
		seen:   map[string]bool{},
		macros: preprocessor.NewMacros(),
	}, nil
}

// Load reads filename into a new Config.
func Load(filename string, opts Options) (*Config, error) {
	return AppendConfig(nil, filename, opts)
}

// AppendConfig reads filename into cfg, creating cfg from opts when it is
// nil. opts is ignored for an existing cfg. On a fatal error the whole tree
// is freed and nil is returned with the error.
func AppendConfig(cfg *Config, filename string, opts Options) (*Config, error) {
	if cfg == nil {
		var err error
		if cfg, err = NewConfig(opts); err != nil {
			return nil, err
		}
	}
	if err := cfg.Append(filename); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Append reads filename into c. A fatal error frees c.
func (c *Config) Append(filename string) error {
	return c.load(func(p *preprocessor.Preprocessor) error {
		return p.ProcessFile(filename)
	})
}

// AppendReader reads r into c as if it were the file name. Relative
// includes are looked up next to name.
func (c *Config) AppendReader(name string, r io.Reader) error {
	return c.load(func(p *preprocessor.Preprocessor) error {
		return p.Process(name, r)
	})
}

func (c *Config) load(run func(*preprocessor.Preprocessor) error) error {
	if !c.loading.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.loading.Store(false)

	b := &builder{cfg: c}
	p := preprocessor.New(c.opts.preprocessor(c.macros), b)
	err := c.define(p)
	if err == nil {
		err = run(p)
	}
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		var e *Error
		if errors.As(err, &e) {
			fields = append(fields, zap.String("file", e.File), zap.Int("line", e.Line))
		}
		c.opts.Logger.Error("config load failed", fields...)
		c.Free()
		return err
	}
	return nil
}

func (c *Config) define(p *preprocessor.Preprocessor) error {
	names := make([]string, 0, len(c.opts.Defines))
	for name := range c.opts.Defines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := p.Define(name, c.opts.Defines[name]); err != nil {
			return &Error{Kind: KindDirective, Err: err}
		}
	}
	return nil
}

// Free releases every section, line and file name held by c. It is safe
// to call on a nil Config and more than once.
func (c *Config) Free() {
	if c == nil {
		return
	}
	for _, s := range c.sections {
		s.lines = nil
	}
	c.sections = nil
	c.filenames = nil
	c.seen = map[string]bool{}
	c.diags = nil
	c.macros = preprocessor.NewMacros()
}

// FreeConfig is Free as a function.
func FreeConfig(c *Config) { c.Free() }

func (c *Config) Options() Options { return c.opts }

func (c *Config) Sections() []*Section { return c.sections }

// Filenames lists every file read into c, in the order first seen.
func (c *Config) Filenames() []string { return c.filenames }

func (c *Config) Diagnostics() []Diagnostic { return c.diags }

// WarningCount returns how many recoverable diagnostics were reported.
func (c *Config) WarningCount() int { return len(c.diags) }

// Print writes every section name followed by its lines, indented.
func (c *Config) Print(w io.Writer) error {
	for _, s := range c.sections {
		if _, err := fmt.Fprintln(w, s.Name); err != nil {
			return err
		}
		for _, l := range s.lines {
			if _, err := fmt.Fprintf(w, "    %s\n", l.Text); err != nil {
				return err
			}
		}
	}
	return nil
}

// PrintConfig dumps c to standard output.
func PrintConfig(c *Config) error {
	if c == nil {
		return nil
	}
	return c.Print(os.Stdout)
}

func (c *Config) addFilename(name string) {
	if c.seen[name] {
		return
	}
	c.seen[name] = true
	c.filenames = append(c.filenames, name)
}

func (c *Config) equal(a, b string) bool {
	if c.opts.CaseInsensitive {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func (c *Config) lookupSection(name string) *Section {
	for _, s := range c.sections {
		if c.equal(s.Name, name) {
			return s
		}
	}
	return nil
}

func (c *Config) report(sev Severity, pos Pos, msg string) error {
	c.diags = append(c.diags, Diagnostic{Severity: sev, File: pos.File, Line: pos.Line, Message: msg})
	c.opts.Logger.Warn(msg,
		zap.String("severity", string(sev)),
		zap.String("file", pos.File),
		zap.Int("line", pos.Line))
	if c.opts.Strict {
		return &Error{Kind: KindSection, File: pos.File, Line: pos.Line, Err: errors.New(msg)}
	}
	return nil
}

// builder collects the lines handed out by the preprocessor into sections.
type builder struct {
	cfg     *Config
	current *Section
	skip    bool
}

func (b *builder) File(name string) { b.cfg.addFilename(name) }

func (b *builder) Warn(pos Pos, msg string) error {
	return b.cfg.report(SeverityWarning, pos, msg)
}

func (b *builder) Line(pos Pos, text string) error {
	o := b.cfg.opts
	if head := strings.TrimLeft(text, " \t"); strings.HasPrefix(head, o.SectionStart) {
		return b.section(pos, head[len(o.SectionStart):])
	}
	if b.skip {
		return nil
	}
	if b.current == nil {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return b.cfg.report(SeverityWarning, pos, "no section header")
	}
	b.current.lines = append(b.current.lines, &Line{Text: text, File: pos.File, Line: pos.Line})
	return nil
}

// section opens the section named by body, the header text after the
// start marker.
func (b *builder) section(pos Pos, body string) error {
	c := b.cfg
	o := c.opts
	b.current, b.skip = nil, true

	end := strings.Index(body, o.SectionEnd)
	if end < 0 {
		if err := c.report(SeverityWarning, pos, "missing "+o.SectionEnd+" in section header"); err != nil {
			return err
		}
		end = len(body)
	}
	title, args := body[:end], ""
	if o.ArgsInSection {
		if i := strings.IndexByte(title, ','); i >= 0 {
			title, args = title[:i], strings.TrimSpace(title[i+1:])
		}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return c.report(SeverityError, pos, "empty section name")
	}
	name := o.SectionStart + title + o.SectionEnd

	if orig := c.lookupSection(name); orig != nil {
		if o.MergeSections {
			b.current, b.skip = orig, false
			return nil
		}
		if o.DuplicateIsError {
			return c.report(SeverityError, pos,
				fmt.Sprintf("duplicate section %s, original in file %s line %d", name, orig.File, orig.Line))
		}
	}
	s := &Section{Name: name, Title: title, Args: args, File: pos.File, Line: pos.Line}
	c.sections = append(c.sections, s)
	b.current, b.skip = s, false
	return nil
}
