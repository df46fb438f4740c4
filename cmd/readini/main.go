package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fwessels/readini"
	"github.com/fwessels/readini/internal/export"
	"github.com/fwessels/readini/internal/preprocessor"
)

const (
	exitOK = iota
	exitLoad
	exitUsage
	exitMissing
)

type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, ",") }
func (l *listFlag) Set(v string) error { *l = append(*l, v); return nil }

type cli struct {
	includes  listFlag
	defines   listFlag
	optsFile  string
	merge     bool
	dupError  bool
	nocase    bool
	env       bool
	macro     bool
	strict    bool
	section   string
	key       string
	valueType string
	format    string
	jq        string
	watch     bool
	verbose   bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var c cli
	fs := flag.NewFlagSet("readini", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Var(&c.includes, "I", "add `dir` to the include search path (repeatable)")
	fs.Var(&c.defines, "D", "predefine `NAME=VALUE` (repeatable)")
	fs.StringVar(&c.optsFile, "options", "", "read options from a YAML `file`")
	fs.BoolVar(&c.merge, "merge", false, "merge sections with the same name")
	fs.BoolVar(&c.dupError, "dup-error", false, "report duplicate sections as errors")
	fs.BoolVar(&c.nocase, "nocase", false, "match section names and keys ignoring case")
	fs.BoolVar(&c.env, "env", false, "expand %VAR% and {VAR} references")
	fs.BoolVar(&c.macro, "macro", false, "expand #define macros in every line")
	fs.BoolVar(&c.strict, "strict", false, "treat warnings as fatal")
	fs.StringVar(&c.section, "section", "", "print the lines of `section`")
	fs.StringVar(&c.key, "key", "", "print the value of `key` in -section")
	fs.StringVar(&c.valueType, "type", "string", "value type for -key: string|int16|uint16|int32|uint32|bool")
	fs.StringVar(&c.format, "format", "text", "output format: text|yaml|json")
	fs.StringVar(&c.jq, "jq", "", "run a jq `expression` against the loaded tree")
	fs.BoolVar(&c.watch, "watch", false, "reload and print again whenever an input file changes")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: readini [flags] <file.ini>... (- reads stdin)")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	files := fs.Args()
	if len(files) == 0 {
		fs.Usage()
		return exitUsage
	}
	if c.key != "" && c.section == "" {
		fmt.Fprintln(stderr, "error: -key requires -section")
		return exitUsage
	}

	opts, err := c.options()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}
	opts.Logger = newLogger(stderr, c.verbose)
	defer opts.Logger.Sync()

	if c.watch {
		return c.runWatch(opts, files, stdout, stderr)
	}

	var cfg *readini.Config
	for _, name := range files {
		if name == "-" {
			if cfg == nil {
				if cfg, err = readini.NewConfig(opts); err != nil {
					fmt.Fprintln(stderr, "error:", err)
					return exitUsage
				}
			}
			err = cfg.AppendReader(name, stdin)
		} else {
			cfg, err = readini.AppendConfig(cfg, name, opts)
		}
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return exitLoad
		}
	}
	return c.output(cfg, stdout, stderr)
}

func (c *cli) options() (readini.Options, error) {
	opts := readini.DefaultOptions()
	if c.optsFile != "" {
		f, err := os.Open(c.optsFile)
		if err != nil {
			return opts, err
		}
		opts, err = readini.LoadOptions(f)
		f.Close()
		if err != nil {
			return opts, err
		}
	}
	opts.IncludeDirs = append(opts.IncludeDirs, c.includes...)
	if len(c.defines) > 0 && opts.Defines == nil {
		opts.Defines = map[string]string{}
	}
	for _, d := range c.defines {
		name, value := preprocessor.ParseDefine(d)
		opts.Defines[name] = value
	}
	opts.MergeSections = opts.MergeSections || c.merge
	opts.DuplicateIsError = opts.DuplicateIsError || c.dupError
	opts.CaseInsensitive = opts.CaseInsensitive || c.nocase
	opts.ExpandEnv = opts.ExpandEnv || c.env
	opts.MacroLanguage = opts.MacroLanguage || c.macro
	opts.Strict = opts.Strict || c.strict
	return opts, opts.Validate()
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

func (c *cli) output(cfg *readini.Config, stdout, stderr io.Writer) int {
	if c.section != "" {
		return c.query(cfg, stdout)
	}
	doc := export.Snapshot(cfg)
	if c.jq != "" {
		results, err := export.Query(doc, c.jq)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return exitUsage
		}
		for _, v := range results {
			if s, ok := v.(string); ok {
				fmt.Fprintln(stdout, s)
				continue
			}
			out, err := export.JSON(v, false)
			if err != nil {
				fmt.Fprintln(stderr, "error:", err)
				return exitLoad
			}
			fmt.Fprintln(stdout, string(out))
		}
		return exitOK
	}

	var err error
	switch c.format {
	case "text":
		err = cfg.Print(stdout)
	case "yaml":
		err = export.YAML(stdout, doc)
	case "json":
		var out []byte
		if out, err = export.JSON(doc.Map(), true); err == nil {
			_, err = fmt.Fprintln(stdout, string(out))
		}
	default:
		fmt.Fprintf(stderr, "error: unknown format %q (use text|yaml|json)\n", c.format)
		return exitUsage
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitLoad
	}
	return exitOK
}

func (c *cli) query(cfg *readini.Config, stdout io.Writer) int {
	t, ok := cfg.FindSection(c.section)
	if !ok {
		return exitMissing
	}
	if c.key == "" {
		for l, ok := t.NextLine(); ok; l, ok = t.NextLine() {
			fmt.Fprintln(stdout, l.Text)
		}
		return exitOK
	}
	var v any
	switch c.valueType {
	case "int16":
		v, ok = t.GetInt16(c.key)
	case "uint16":
		v, ok = t.GetUint16(c.key)
	case "int32":
		v, ok = t.GetInt32(c.key)
	case "uint32":
		v, ok = t.GetUint32(c.key)
	case "bool":
		v, ok = t.GetBool(c.key)
	default:
		v, ok = t.GetString(c.key)
	}
	if !ok {
		return exitMissing
	}
	fmt.Fprintln(stdout, v)
	return exitOK
}

func (c *cli) runWatch(opts readini.Options, files []string, stdout, stderr io.Writer) int {
	w, err := readini.NewWatcher(opts, files...)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitLoad
	}
	c.output(w.Current(), stdout, stderr)
	w.OnChange(func(cfg *readini.Config) {
		fmt.Fprintln(stdout, "---")
		c.output(cfg, stdout, stderr)
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "error:", err)
		return exitLoad
	}
	return exitOK
}
