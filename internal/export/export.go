// Package export turns a loaded configuration tree into documents other
// tools can read: YAML, JSON and the results of jq queries.
package export

import (
	"fmt"
	"io"

	"github.com/itchyny/gojq"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/fwessels/readini"
)

type Document struct {
	Files       []string     `yaml:"files"`
	Sections    []Section    `yaml:"sections"`
	Diagnostics []Diagnostic `yaml:"diagnostics,omitempty"`
}

type Section struct {
	Name  string `yaml:"name"`
	Args  string `yaml:"args,omitempty"`
	File  string `yaml:"file"`
	Line  int    `yaml:"line"`
	Lines []Line `yaml:"lines"`
}

type Line struct {
	Text string `yaml:"text"`
	File string `yaml:"file"`
	Line int    `yaml:"line"`
}

type Diagnostic struct {
	Severity string `yaml:"severity"`
	File     string `yaml:"file"`
	Line     int    `yaml:"line"`
	Message  string `yaml:"message"`
}

// Snapshot copies cfg into a Document. Section names lose their markers.
func Snapshot(cfg *readini.Config) Document {
	doc := Document{
		Files:    append([]string{}, cfg.Filenames()...),
		Sections: []Section{},
	}
	for _, s := range cfg.Sections() {
		sec := Section{Name: s.Title, Args: s.Args, File: s.File, Line: s.Line, Lines: []Line{}}
		for _, l := range s.Lines() {
			sec.Lines = append(sec.Lines, Line{Text: l.Text, File: l.File, Line: l.Line})
		}
		doc.Sections = append(doc.Sections, sec)
	}
	for _, d := range cfg.Diagnostics() {
		doc.Diagnostics = append(doc.Diagnostics, Diagnostic{
			Severity: string(d.Severity), File: d.File, Line: d.Line, Message: d.Message,
		})
	}
	return doc
}

// Map returns d as plain maps and slices, the shape jq and structpb expect.
func (d Document) Map() map[string]any {
	files := make([]any, 0, len(d.Files))
	for _, f := range d.Files {
		files = append(files, f)
	}
	sections := make([]any, 0, len(d.Sections))
	for _, s := range d.Sections {
		lines := make([]any, 0, len(s.Lines))
		for _, l := range s.Lines {
			lines = append(lines, map[string]any{"text": l.Text, "file": l.File, "line": l.Line})
		}
		sections = append(sections, map[string]any{
			"name":  s.Name,
			"args":  s.Args,
			"file":  s.File,
			"line":  s.Line,
			"lines": lines,
		})
	}
	diags := make([]any, 0, len(d.Diagnostics))
	for _, g := range d.Diagnostics {
		diags = append(diags, map[string]any{
			"severity": g.Severity, "file": g.File, "line": g.Line, "message": g.Message,
		})
	}
	return map[string]any{"files": files, "sections": sections, "diagnostics": diags}
}

func YAML(w io.Writer, d Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}

// JSON renders v, a value made of maps, slices, strings, numbers and bools.
func JSON(v any, pretty bool) ([]byte, error) {
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	opts := protojson.MarshalOptions{}
	if pretty {
		opts.Multiline = true
		opts.Indent = "  "
	}
	return opts.Marshal(pv)
}

// Query runs the jq program src against d and collects every result.
func Query(d Document, src string) ([]any, error) {
	q, err := gojq.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse jq %q: %w", src, err)
	}
	var out []any
	iter := q.Run(d.Map())
	for {
		v, ok := iter.Next()
		if !ok {
			return out, nil
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("jq %q: %w", src, err)
		}
		out = append(out, v)
	}
}
