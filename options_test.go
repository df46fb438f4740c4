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
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require.NoError(t, Options{}.Validate())
	require.NoError(t, DefaultOptions().Validate())

	tests := []struct {
		name  string
		opts  Options
		field string
	}{
		{"comment equals section start", Options{CommentMarker: "[", SectionStart: "["}, "CommentMarker"},
		{"long marker", Options{CommentMarker: "0123456789"}, "CommentMarker"},
		{"negative depth", Options{MaxDepth: -1}, "MaxDepth"},
		{"empty include dir", Options{IncludeDirs: []string{"conf", ""}}, "IncludeDirs[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, KindOptions, e.Kind)

			var ve validator.ValidationErrors
			require.True(t, errors.As(err, &ve))
			require.NotEmpty(t, ve)
			assert.Equal(t, tt.field, ve[0].Field())
		})
	}

	_, err := NewConfig(Options{MaxDepth: 2000})
	assert.Error(t, err)
}

func TestLoadOptions(t *testing.T) {
	opts, err := LoadOptions(strings.NewReader(`
comment_marker: "#"
merge_sections: true
expand_env: true
include_dirs: [conf, /etc/app]
defines:
  DEBUG: "1"
max_depth: 8
`))
	require.NoError(t, err)
	assert.Equal(t, "#", opts.CommentMarker)
	assert.Equal(t, "[", opts.SectionStart, "absent keys keep their defaults")
	assert.True(t, opts.MergeSections)
	assert.True(t, opts.ExpandEnv)
	assert.Equal(t, []string{"conf", "/etc/app"}, opts.IncludeDirs)
	assert.Equal(t, map[string]string{"DEBUG": "1"}, opts.Defines)
	assert.Equal(t, 8, opts.MaxDepth)

	opts, err = LoadOptions(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)

	_, err = LoadOptions(strings.NewReader("no_such_option: true\n"))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindOptions, e.Kind)

	_, err = LoadOptions(strings.NewReader("max_depth: -3\n"))
	assert.Error(t, err)
}
