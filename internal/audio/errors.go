package audio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrDecode matches every failure to turn a file into a waveform:
	// missing or unreadable files, corrupt data and unsupported codecs.
	ErrDecode = errors.New("audio decode failed")

	// ErrUnsupportedExtension is returned when a file name does not carry
	// one of the accepted extensions.
	ErrUnsupportedExtension = errors.New("unsupported audio file extension")
)

// DecodeError records the file that could not be decoded and why
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports true for ErrDecode so callers can test the category without
// caring about the underlying cause.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func decodeErrorf(path, format string, args ...any) error {
	return &DecodeError{Path: path, Err: fmt.Errorf(format, args...)}
}

// ValidateExtension checks the file name extension against allowed, case
// insensitively. Nothing is read from disk.
func ValidateExtension(path string, allowed []string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return fmt.Errorf("%w: %q has no extension", ErrUnsupportedExtension, filepath.Base(path))
	}

	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (accepted: %s)", ErrUnsupportedExtension, ext, strings.Join(allowed, ", "))
}
