package preprocessor

import (
	"strconv"
	"strings"
)

// condStack tracks #if nesting for one top-level load and its includes.
// found[d-1] records whether depth d has already taken a branch; suppress is
// the depth at which output stopped, 0 while lines are being emitted.
type condStack struct {
	found    []bool
	opened   []Pos
	suppress int
	max      int
}

func newCondStack(max int) *condStack { return &condStack{max: max} }

func (c *condStack) Depth() int   { return len(c.found) }
func (c *condStack) Active() bool { return c.suppress == 0 }

// If opens a level. cond is only evaluated when the enclosing level is live.
func (c *condStack) If(cond func() (bool, error), pos Pos) error {
	if len(c.found) >= c.max {
		return ErrNestingTooDeep
	}
	c.found = append(c.found, false)
	c.opened = append(c.opened, pos)
	if c.suppress != 0 {
		return nil
	}
	ok, err := cond()
	if err != nil {
		return err
	}
	if ok {
		c.found[len(c.found)-1] = true
	} else {
		c.suppress = len(c.found)
	}
	return nil
}

func (c *condStack) Elif(cond func() (bool, error)) error {
	if len(c.found) == 0 {
		return ErrMisplacedElif
	}
	return c.branch(cond)
}

func (c *condStack) Else() error {
	if len(c.found) == 0 {
		return ErrMisplacedElse
	}
	return c.branch(func() (bool, error) { return true, nil })
}

// branch moves to the next #elif or #else. cond is only evaluated when this
// depth is suppressed and has not taken a branch yet.
func (c *condStack) branch(cond func() (bool, error)) error {
	depth := len(c.found)
	switch {
	case c.suppress == 0:
		// the branch before this one was live
		c.suppress = depth
	case c.suppress == depth && !c.found[depth-1]:
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			c.found[depth-1] = true
			c.suppress = 0
		}
	}
	return nil
}

func (c *condStack) Endif() error {
	depth := len(c.found)
	if depth == 0 {
		return ErrMisplacedEndif
	}
	if c.suppress == depth {
		c.suppress = 0
	}
	c.found = c.found[:depth-1]
	c.opened = c.opened[:depth-1]
	return nil
}

// Unclosed returns where the innermost open #if was read.
func (c *condStack) Unclosed() Pos {
	if len(c.opened) == 0 {
		return Pos{}
	}
	return c.opened[len(c.opened)-1]
}

// evalCondition reads expr as one integer literal in Go syntax (decimal,
// 0x hex, 0o or leading-zero octal, 0b binary); non-zero is true. Anything
// else, an empty expression included, is false.
func evalCondition(expr string) bool {
	n, err := strconv.ParseInt(strings.TrimSpace(expr), 0, 64)
	return err == nil && n != 0
}
