package stub

import (
	"errors"
	"fmt"
)

// Sentinel errors for definition file loading. Use errors.Is to branch on the
// cause; the concrete types carry the details.
var (
	ErrFileNotExists = errors.New("stub file does not exist")
	ErrDecoding      = errors.New("stub file decoding failed")
)

// FileNotExistsError reports a definition file that is missing or unreadable.
// Path is the path exactly as the caller passed it.
type FileNotExistsError struct {
	Path string
	Err  error
}

func (e *FileNotExistsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stub file not found: %s: %v", e.Path, e.Err)
	}
	return "stub file not found: " + e.Path
}

// Is reports ErrFileNotExists as a match.
func (e *FileNotExistsError) Is(target error) bool {
	return target == ErrFileNotExists
}

func (e *FileNotExistsError) Unwrap() error {
	return e.Err
}

// DecodingError reports a definition file that exists but could not be
// decoded. Field names the offending location (for example
// "[1].responseStub.statusCode") when known; Offset is the byte offset of a
// syntax error, or -1.
type DecodingError struct {
	Path    string
	Field   string
	Offset  int64
	Message string
	Err     error
}

func (e *DecodingError) Error() string {
	msg := "stub decoding failed"
	if e.Path != "" {
		msg += " in " + e.Path
	}
	switch {
	case e.Field != "":
		msg += " at " + e.Field
	case e.Offset >= 0:
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports ErrDecoding as a match.
func (e *DecodingError) Is(target error) bool {
	return target == ErrDecoding
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// IsFileNotExists reports whether err is, or wraps, a missing-file failure.
func IsFileNotExists(err error) bool {
	return errors.Is(err, ErrFileNotExists)
}

// IsDecodingError reports whether err is, or wraps, a decoding failure.
func IsDecodingError(err error) bool {
	return errors.Is(err, ErrDecoding)
}
