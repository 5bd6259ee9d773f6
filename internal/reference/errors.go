package reference

import (
	"errors"
	"fmt"
)

// Process exit codes for reference file problems.
const (
	ExitInvalidArguments = 1
	ExitFileNotExisting  = 2
	ExitFileNotReadable  = 3
	ExitFileIsDirectory  = 4
)

// ConfigErrorKind classifies a reference file failure.
type ConfigErrorKind int

const (
	// KindNotExist means the file does not exist.
	KindNotExist ConfigErrorKind = iota + 1
	// KindUnreadable means the file exists but cannot be read.
	KindUnreadable
	// KindIsDirectory means the path names a directory.
	KindIsDirectory
)

func (k ConfigErrorKind) String() string {
	switch k {
	case KindNotExist:
		return "does not exist"
	case KindUnreadable:
		return "is not readable"
	case KindIsDirectory:
		return "is a directory"
	default:
		return "is invalid"
	}
}

// ConfigError reports a reference file that could not be opened.
type ConfigError struct {
	Kind ConfigErrorKind
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reference file %s %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("reference file %s %s", e.Path, e.Kind)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ExitCode returns the documented process exit code for this failure.
func (e *ConfigError) ExitCode() int {
	switch e.Kind {
	case KindNotExist:
		return ExitFileNotExisting
	case KindUnreadable:
		return ExitFileNotReadable
	case KindIsDirectory:
		return ExitFileIsDirectory
	default:
		return ExitInvalidArguments
	}
}

// ParseError reports a malformed entry in a reference file.
type ParseError struct {
	Path  string
	Key   string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("reference file %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("reference file %s: entry %q=%q: %v", e.Path, e.Key, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrEmptyReference is returned for an entry without a reference name.
var ErrEmptyReference = errors.New("reference: empty reference")

// ExitCode maps any error returned by Load to a process exit code.
func ExitCode(err error) int {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.ExitCode()
	}
	return ExitInvalidArguments
}
