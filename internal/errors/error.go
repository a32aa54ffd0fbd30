package errors

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// Category groups error codes.
type Category string

const (
	CategoryRuntime Category = "runtime"
	CategoryConfig  Category = "config"
	CategoryCLI     Category = "cli"
	CategoryInspect Category = "inspect"
)

// Location points into a file, usually reactive.json.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// String returns the location as file:line[:column].
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Error is a coded error with optional location, hint and wrapped cause.
type Error struct {
	Code     string
	Category Category
	Message  string
	Detail   string

	Location *Location
	// Context holds the lines around Location.
	Context []string

	Suggestion string
	DocURL     string

	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithLocation attaches a file position and reads the surrounding lines.
func (e *Error) WithLocation(file string, line, column int) *Error {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithOffset attaches the position of byte offset within data, as reported
// by encoding/json for syntax and type errors.
func (e *Error) WithOffset(file string, data []byte, offset int64) *Error {
	if offset < 0 || offset > int64(len(data)) {
		return e
	}
	before := data[:offset]
	line := bytes.Count(before, []byte{'\n'}) + 1
	col := int(offset) + 1
	if i := bytes.LastIndexByte(before, '\n'); i >= 0 {
		col = int(offset) - i
	}
	return e.WithLocation(file, line, col)
}

// WithSuggestion adds a hint.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail replaces the detail paragraph.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// Wrap sets the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	first := targetLine - contextSize/2
	last := targetLine + contextSize/2
	if first < 1 {
		first = 1
	}

	for scanner.Scan() {
		lineNum++
		if lineNum > last {
			break
		}
		if lineNum >= first {
			lines = append(lines, scanner.Text())
		}
	}
	return lines
}

// New creates an Error from a registered code.
func New(code string) *Error {
	tmpl, ok := registry[code]
	if !ok {
		return &Error{Code: code, Message: "Unknown error"}
	}
	return &Error{
		Code:     code,
		Category: tmpl.Category,
		Message:  tmpl.Message,
		Detail:   tmpl.Detail,
		DocURL:   docURL(code),
	}
}

// Newf creates an uncoded Error with a formatted message.
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError returns err unchanged when it already is an *Error and wraps it
// in code otherwise.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(code).Wrap(err)
}

// FromRuntime maps an error returned by the reactive runtime onto its
// registered code. Errors the runtime did not produce are returned as
// uncoded runtime errors.
func FromRuntime(err error) *Error {
	if err == nil {
		return nil
	}

	var loop *reactive.LoopError
	switch {
	case stderrors.As(err, &loop):
		return New("R002").Wrap(err).WithSuggestion(fmt.Sprintf(
			"Effect %s writes a signal it reads. Guard the write or move it out of the effect.",
			loop.Node))
	case stderrors.Is(err, reactive.ErrInfiniteUpdateLoop):
		return New("R002").Wrap(err)
	case stderrors.Is(err, reactive.ErrRuntimeDisposed):
		return New("R004").Wrap(err)
	case stderrors.Is(err, reactive.ErrUseAfterDispose):
		return New("R001").Wrap(err)
	case stderrors.Is(err, reactive.ErrClosurePanic):
		return New("R003").Wrap(err)
	default:
		return &Error{Category: CategoryRuntime, Message: "Runtime error", Wrapped: err}
	}
}

// Code returns the code of the first *Error in err's chain, or "".
func Code(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}
