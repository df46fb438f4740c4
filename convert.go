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
	"strings"
)

// ParseInt converts s to a signed integer of the given bit size. Besides
// decimal it accepts hexadecimal written as 0x1F, $1F or 1Fh.
func ParseInt(s string, bitSize int) (int64, error) {
	neg, mag, err := parseNumber(s)
	if err != nil {
		return 0, numError("ParseInt", s, err)
	}
	limit := uint64(1) << uint(bitSize-1)
	if (!neg && mag >= limit) || (neg && mag > limit) {
		return 0, numError("ParseInt", s, strconv.ErrRange)
	}
	if neg {
		return -int64(mag), nil
	}
	return int64(mag), nil
}

// ParseUint is ParseInt for unsigned values; a minus sign is rejected.
func ParseUint(s string, bitSize int) (uint64, error) {
	neg, mag, err := parseNumber(s)
	if err != nil {
		return 0, numError("ParseUint", s, err)
	}
	if neg && mag != 0 {
		return 0, numError("ParseUint", s, strconv.ErrSyntax)
	}
	if bitSize < 64 && mag >= uint64(1)<<uint(bitSize) {
		return 0, numError("ParseUint", s, strconv.ErrRange)
	}
	return mag, nil
}

var boolWords = map[string]bool{
	"0": false, "false": false, "no": false, "n": false, "f": false, "off": false,
	"1": true, "true": true, "yes": true, "t": true, "y": true, "on": true,
}

// ParseBool accepts any number (non-zero is true) and, ignoring case,
// 0/FALSE/No/N/F/Off and 1/TRUE/Yes/T/Y/On.
func ParseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if n, err := ParseInt(s, 64); err == nil {
		return n != 0, nil
	}
	if v, ok := boolWords[strings.ToLower(s)]; ok {
		return v, nil
	}
	return false, numError("ParseBool", s, strconv.ErrSyntax)
}

func parseNumber(s string) (neg bool, mag uint64, err error) {
	s = strings.TrimSpace(s)
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	digits, base := s, 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		digits, base = s[2:], 16
	case strings.HasPrefix(s, "$"):
		digits, base = s[1:], 16
	case strings.HasSuffix(s, "h") || strings.HasSuffix(s, "H"):
		digits, base = s[:len(s)-1], 16
	}
	if digits == "" || digits[0] == '+' || digits[0] == '-' || strings.Contains(digits, "_") {
		return false, 0, strconv.ErrSyntax
	}
	mag, err = strconv.ParseUint(digits, base, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok {
			err = ne.Err
		}
		return false, 0, err
	}
	return neg, mag, nil
}

func numError(fn, s string, err error) error {
	return &strconv.NumError{Func: fn, Num: s, Err: err}
}
