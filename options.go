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

package readini

import (
	"io"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fwessels/readini/internal/preprocessor"
)

// Options controls how a Config reads its files. They are fixed when the
// Config is created and apply to every file appended to it.
type Options struct {
	CommentMarker    string            `yaml:"comment_marker" validate:"required,max=8,nefield=SectionStart"`
	CommentAnywhere  bool              `yaml:"comment_anywhere"`
	SlashComments    bool              `yaml:"slash_comments"`
	NoTrim           bool              `yaml:"no_trim"`
	KeepBlankLines   bool              `yaml:"keep_blank_lines"`
	SectionStart     string            `yaml:"section_start" validate:"required,max=8"`
	SectionEnd       string            `yaml:"section_end" validate:"required,max=8"`
	ArgsInSection    bool              `yaml:"args_in_section"`
	CaseInsensitive  bool              `yaml:"case_insensitive"`
	MergeSections    bool              `yaml:"merge_sections"`
	DuplicateIsError bool              `yaml:"duplicate_is_error"`
	ExpandEnv        bool              `yaml:"expand_env"`
	MacroLanguage    bool              `yaml:"macro_language"`
	FailOnUndefined  bool              `yaml:"fail_on_undefined"`
	Strict           bool              `yaml:"strict"`
	IncludeDirs      []string          `yaml:"include_dirs" validate:"dive,required"`
	IncludeEnv       string            `yaml:"include_env"`
	Defines          map[string]string `yaml:"defines"`
	MaxDepth         int               `yaml:"max_depth" validate:"min=1,max=1024"`

	Logger *zap.Logger `yaml:"-" validate:"-"`
	Env    Environment `yaml:"-" validate:"-"`
}

var validate = validator.New()

func DefaultOptions() Options {
	return Options{
		CommentMarker: ";",
		SectionStart:  "[",
		SectionEnd:    "]",
		MaxDepth:      preprocessor.DefaultMaxDepth,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CommentMarker == "" {
		o.CommentMarker = d.CommentMarker
	}
	if o.SectionStart == "" {
		o.SectionStart = d.SectionStart
	}
	if o.SectionEnd == "" {
		o.SectionEnd = d.SectionEnd
	}
	if o.MaxDepth == 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Env == nil {
		o.Env = preprocessor.OSEnv{}
	}
	return o
}

// Validate checks o after defaults have been filled in.
func (o Options) Validate() error {
	if err := validate.Struct(o.withDefaults()); err != nil {
		return &Error{Kind: KindOptions, Err: err}
	}
	return nil
}

// LoadOptions reads Options from a YAML document. Keys that are absent keep
// their DefaultOptions value.
func LoadOptions(r io.Reader) (Options, error) {
	opts := DefaultOptions()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && err != io.EOF {
		return Options{}, &Error{Kind: KindOptions, Err: err}
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func (o Options) preprocessor(macros *preprocessor.Macros) preprocessor.Options {
	return preprocessor.Options{
		CommentMarker:   o.CommentMarker,
		CommentAnywhere: o.CommentAnywhere,
		SlashComments:   o.SlashComments,
		NoTrim:          o.NoTrim,
		KeepBlankLines:  o.KeepBlankLines,
		ExpandEnv:       o.ExpandEnv,
		MacroLanguage:   o.MacroLanguage,
		FailOnUndefined: o.FailOnUndefined,
		IncludeDirs:     o.IncludeDirs,
		IncludeEnv:      o.IncludeEnv,
		MaxDepth:        o.MaxDepth,
		Env:             o.Env,
		Macros:          macros,
	}
}
