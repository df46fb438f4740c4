package preprocessor

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a fatal load error.
type Kind string

const (
	KindIO        Kind = "io"
	KindDirective Kind = "directive"
	KindInclude   Kind = "include"
	KindExpand    Kind = "expand"
	KindUser      Kind = "user"
	KindOptions   Kind = "options"
	KindSection   Kind = "section"
)

var (
	ErrMisplacedElif   = errors.New("misplaced #elif")
	ErrMisplacedElse   = errors.New("misplaced #else")
	ErrMisplacedEndif  = errors.New("misplaced #endif")
	ErrUnterminatedIf  = errors.New("unterminated #if")
	ErrNestingTooDeep  = errors.New("#if nesting too deep")
	ErrIncludeNotFound = errors.New("include file not found")
	ErrIncludeCycle    = errors.New("include cycle")
	ErrUndefined       = errors.New("undefined variable")
	ErrRecursiveMacro  = errors.New("recursive macro invocation")
	ErrErrorDirective  = errors.New("#error")
)

// Error is a fatal load error tagged with the position that caused it.
type Error struct {
	Kind Kind
	File string
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}

// Unwrap lets errors.Is match the wrapped sentinel.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind Kind, pos Pos, err error) *Error {
	if err == nil {
		err = errors.New(string(kind))
	}
	return &Error{Kind: kind, File: pos.File, Line: pos.Line, Err: err}
}

// Pos is a location in a source file.
type Pos struct {
	File string
	Line int
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}
