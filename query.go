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

import "strings"

// Tracker is a cursor over the lines of one section. It does not own the
// section; several trackers may walk the same section at once.
type Tracker struct {
	section *Section
	fold    bool
	pos     int
}

// FindSection returns a tracker positioned before the first line of the
// first section called name. Section markers are added when name lacks them.
func (c *Config) FindSection(name string) (*Tracker, bool) {
	if c == nil {
		return nil, false
	}
	o := c.opts
	if !strings.HasPrefix(name, o.SectionStart) || !strings.HasSuffix(name, o.SectionEnd) {
		name = o.SectionStart + name + o.SectionEnd
	}
	s := c.lookupSection(name)
	if s == nil {
		return nil, false
	}
	return &Tracker{section: s, fold: o.CaseInsensitive, pos: -1}, true
}

// Lookup finds key in section and returns its value.
func (c *Config) Lookup(section, key string) (string, bool) {
	t, ok := c.FindSection(section)
	if !ok {
		return "", false
	}
	return t.FindFirstLine(key)
}

func (t *Tracker) Section() *Section { return t.section }

// Reset moves the cursor back before the first line.
func (t *Tracker) Reset() { t.pos = -1 }

// NextLine advances the cursor and returns the line under it.
func (t *Tracker) NextLine() (*Line, bool) {
	if t.pos+1 >= len(t.section.lines) {
		t.pos = len(t.section.lines)
		return nil, false
	}
	t.pos++
	return t.section.lines[t.pos], true
}

// FindNextLine scans forward for a line starting with prefix and returns the
// rest of it. Unless prefix ends in '=', blanks and one '=' after the prefix
// are skipped, so "Key" finds "Key = value" and returns "value".
func (t *Tracker) FindNextLine(prefix string) (string, bool) {
	for {
		l, ok := t.NextLine()
		if !ok {
			return "", false
		}
		if v, ok := matchPrefix(l.Text, prefix, t.fold); ok {
			return v, true
		}
	}
}

// FindFirstLine is Reset followed by FindNextLine.
func (t *Tracker) FindFirstLine(prefix string) (string, bool) {
	t.Reset()
	return t.FindNextLine(prefix)
}

func matchPrefix(text, prefix string, fold bool) (string, bool) {
	if len(text) < len(prefix) {
		return "", false
	}
	head, rest := text[:len(prefix)], text[len(prefix):]
	if fold && !strings.EqualFold(head, prefix) || !fold && head != prefix {
		return "", false
	}
	if !strings.HasSuffix(prefix, "=") {
		rest = strings.TrimLeft(rest, " \t")
		rest = strings.TrimPrefix(rest, "=")
		rest = strings.TrimLeft(rest, " \t")
	}
	return rest, true
}

// The Get getters look key up from the first line of the section; the Next
// getters continue from the tracker's position, so a repeated key can be
// read one occurrence after another. A missing key or a value that does not
// convert reports false.

func (t *Tracker) GetString(key string) (string, bool) { return t.FindFirstLine(key) }
func (t *Tracker) GetInt16(key string) (int16, bool)   { return toInt16(t.FindFirstLine(key)) }
func (t *Tracker) GetUint16(key string) (uint16, bool) { return toUint16(t.FindFirstLine(key)) }
func (t *Tracker) GetInt32(key string) (int32, bool)   { return toInt32(t.FindFirstLine(key)) }
func (t *Tracker) GetUint32(key string) (uint32, bool) { return toUint32(t.FindFirstLine(key)) }
func (t *Tracker) GetBool(key string) (bool, bool)     { return toBool(t.FindFirstLine(key)) }

func (t *Tracker) NextString(key string) (string, bool) { return t.FindNextLine(key) }
func (t *Tracker) NextInt16(key string) (int16, bool)   { return toInt16(t.FindNextLine(key)) }
func (t *Tracker) NextUint16(key string) (uint16, bool) { return toUint16(t.FindNextLine(key)) }
func (t *Tracker) NextInt32(key string) (int32, bool)   { return toInt32(t.FindNextLine(key)) }
func (t *Tracker) NextUint32(key string) (uint32, bool) { return toUint32(t.FindNextLine(key)) }
func (t *Tracker) NextBool(key string) (bool, bool)     { return toBool(t.FindNextLine(key)) }

func toInt16(v string, ok bool) (int16, bool) {
	n, ok := toInt(v, ok, 16)
	return int16(n), ok
}

func toUint16(v string, ok bool) (uint16, bool) {
	n, ok := toUint(v, ok, 16)
	return uint16(n), ok
}

func toInt32(v string, ok bool) (int32, bool) {
	n, ok := toInt(v, ok, 32)
	return int32(n), ok
}

func toUint32(v string, ok bool) (uint32, bool) {
	n, ok := toUint(v, ok, 32)
	return uint32(n), ok
}

func toBool(v string, ok bool) (bool, bool) {
	if !ok {
		return false, false
	}
	b, err := ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func toInt(v string, ok bool, bitSize int) (int64, bool) {
	if !ok {
		return 0, false
	}
	n, err := ParseInt(v, bitSize)
	if err != nil {
		return 0, false
	}
	return n, true
}

func toUint(v string, ok bool, bitSize int) (uint64, bool) {
	if !ok {
		return 0, false
	}
	n, err := ParseUint(v, bitSize)
	if err != nil {
		return 0, false
	}
	return n, true
}
