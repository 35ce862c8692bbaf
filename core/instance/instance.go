// Package instance reads and prints scheduling instances.
//
// Two encodings are supported: the line oriented text format made of
// resource, state, mode, activity, temporal, nonrenewable and dependence
// statements, and YAML or JSON documents with the same content. In both, a
// time interval "a b" covers the periods a+1 to b while progress intervals of
// modes are inclusive on both ends.
package instance

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kilianp07/rcpsched/core/model"
)

// Format selects an encoding.
type Format string

const (
	Text Format = "text"
	YAML Format = "yaml"
	JSON Format = "json"
)

// ErrSyntax reports malformed input.
var ErrSyntax = errors.New("syntax error")

// ErrFormat reports an unknown format name.
var ErrFormat = errors.New("unknown instance format")

// ParseError locates a failure in text input.
type ParseError struct {
	Line int
	Near string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: parse error before/at `%s': %v", e.Line, e.Near, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FormatOf picks the format from the file extension; anything but .yaml,
// .yml and .json is text.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	case ".json":
		return JSON
	}
	return Text
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case Text, YAML, JSON:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrFormat, s)
}

// LoadFile reads an instance, choosing the format from the extension. A
// path of "-" reads text from stdin.
func LoadFile(path string) (*model.Problem, error) {
	if path == "-" {
		return Load(os.Stdin, Text)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Load(f, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Load reads an instance in the given format.
func Load(r io.Reader, format Format) (*model.Problem, error) {
	switch format {
	case Text:
		return ParseText(r)
	case YAML, JSON:
		doc, err := DecodeDocument(r, format)
		if err != nil {
			return nil, err
		}
		return doc.Build()
	}
	return nil, fmt.Errorf("%w: %q", ErrFormat, format)
}

// Write prints p in the given format.
func Write(w io.Writer, p *model.Problem, format Format) error {
	if format == Text {
		return WriteText(w, p)
	}
	return EncodeDocument(w, FromProblem(p), format)
}
