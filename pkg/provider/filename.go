package provider

import (
	"strings"
	"unicode/utf8"
)

const maxFilenameLength = 255

// ValidateFilename checks that name is usable as an object key on every
// adapter: non-empty, valid UTF-8, no path separators or control characters,
// and not a relative path element.
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return InvalidFilenameError{Filename: name, Reason: "empty"}
	case len(name) > maxFilenameLength:
		return InvalidFilenameError{Filename: name, Reason: "too long"}
	case !utf8.ValidString(name):
		return InvalidFilenameError{Filename: name, Reason: "not valid UTF-8"}
	case name == "." || name == "..":
		return InvalidFilenameError{Filename: name, Reason: "reserved name"}
	case strings.ContainsAny(name, `/\`):
		return InvalidFilenameError{Filename: name, Reason: "contains a path separator"}
	}

	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return InvalidFilenameError{Filename: name, Reason: "contains a control character"}
		}
	}
	return nil
}
