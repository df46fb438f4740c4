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
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		bitSize int
		want    int64
		err     error
	}{
		{"31", 32, 31, nil},
		{"0x1F", 32, 31, nil},
		{"0X1f", 32, 31, nil},
		{"$1F", 32, 31, nil},
		{"1Fh", 32, 31, nil},
		{"1fH", 32, 31, nil},
		{" -12 ", 32, -12, nil},
		{"+7", 8, 7, nil},
		{"-0x80", 8, -128, nil},
		{"0x80", 8, 0, strconv.ErrRange},
		{"32767", 16, 32767, nil},
		{"32768", 16, 0, strconv.ErrRange},
		{"", 32, 0, strconv.ErrSyntax},
		{"0x", 32, 0, strconv.ErrSyntax},
		{"--1", 32, 0, strconv.ErrSyntax},
		{"1_000", 32, 0, strconv.ErrSyntax},
		{"12abc", 32, 0, strconv.ErrSyntax},
	}
	for _, tt := range tests {
		got, err := ParseInt(tt.in, tt.bitSize)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseUint(t *testing.T) {
	n, err := ParseUint("0xFFFF", 16)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFFFF), n)

	_, err = ParseUint("0x10000", 16)
	assert.ErrorIs(t, err, strconv.ErrRange)

	_, err = ParseUint("-1", 32)
	assert.ErrorIs(t, err, strconv.ErrSyntax)

	n, err = ParseUint("-0", 32)
	require.NoError(t, err)
	assert.Zero(t, n)

	var ne *strconv.NumError
	_, err = ParseUint("x", 32)
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "ParseUint", ne.Func)
	assert.Equal(t, "x", ne.Num)
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "TRUE", "Yes", "t", "Y", "on", "42", "0x10"} {
		v, err := ParseBool(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"0", "false", "NO", "n", "F", "Off", "0x0"} {
		v, err := ParseBool(s)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}
	for _, s := range []string{"", "maybe", "yess"} {
		_, err := ParseBool(s)
		assert.ErrorIs(t, err, strconv.ErrSyntax, s)
	}
}
