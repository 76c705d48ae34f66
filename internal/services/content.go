package services

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	DefaultMaxFileSize = 50 * 1024 * 1024
	DefaultMaxLines    = 100000
)

// Limits bound what is accepted for analysis.
type Limits struct {
	MaxFileSize  int64 `mapstructure:"max_file_size"`
	MaxLines     int   `mapstructure:"max_lines"`
	MaxLineBytes int   `mapstructure:"max_line_bytes"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:  DefaultMaxFileSize,
		MaxLines:     DefaultMaxLines,
		MaxLineBytes: defaultMaxLineBytes,
	}
}

// Check rejects content that is too large or has too many non-blank lines.
func (l Limits) Check(data []byte) error {
	if l.MaxFileSize > 0 && int64(len(data)) > l.MaxFileSize {
		return fmt.Errorf("%w: content is %d bytes, limit is %d", ErrResourceExceeded, len(data), l.MaxFileSize)
	}
	if l.MaxLines > 0 {
		if n := countNonBlankLines(data); n > l.MaxLines {
			return fmt.Errorf("%w: content has %d lines, limit is %d", ErrResourceExceeded, n, l.MaxLines)
		}
	}
	return nil
}

func countNonBlankLines(data []byte) int {
	n := 0
	for len(data) > 0 {
		line := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			data = nil
		}
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}

// DecodeContent returns content as UTF-8 text. A UTF-8 BOM is dropped and
// UTF-16 with a BOM is transcoded; anything that is not valid text fails
// with ErrUnsupportedInput.
func DecodeContent(data []byte) ([]byte, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedInput, err)
	}
	if !utf8.Valid(decoded) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8 text", ErrUnsupportedInput)
	}
	if bytes.IndexByte(decoded, 0) >= 0 {
		return nil, fmt.Errorf("%w: content contains binary data", ErrUnsupportedInput)
	}
	return decoded, nil
}
