// Package version holds the library version stamped on outgoing messages and
// compares it against the version found on received ones.
package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Library is the version written to the version attribute of every message
// built by this package.
const Library = "1.0.0"

var library = semver.MustParse(Library)

// Compare parses both versions and returns -1, 0 or 1 when a is older than,
// equal to, or newer than b.
func Compare(a, b string) (int, error) {
	va, err := semver.NewVersion(a)
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", a, err)
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", b, err)
	}
	return va.Compare(vb), nil
}

// CompareToLibrary compares a producer version against Library.
func CompareToLibrary(producer string) (int, error) {
	v, err := semver.NewVersion(producer)
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", producer, err)
	}
	return v.Compare(library), nil
}
