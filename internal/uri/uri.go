// Package uri classifies link targets as absolute (remote) or relative (local).
package uri

import (
	"regexp"
	"strings"
)

// Kind is the classification of a link target.
type Kind int

const (
	// Relative targets point at files resolved against the local filesystem.
	Relative Kind = iota
	// Absolute targets carry a URI scheme and point at external resources.
	Absolute
)

func (k Kind) String() string {
	if k == Absolute {
		return "absolute"
	}
	return "relative"
}

// absoluteURI matches an RFC 3986 absolute URI in full: a scheme, a colon,
// then hier-part and query characters (unreserved, sub-delims, ":", "@",
// "/", "?", IP-literal brackets, percent-encodings) and an optional fragment.
var absoluteURI = regexp.MustCompile(
	`^[A-Za-z][A-Za-z0-9+.\-]*:` +
		`(?:[A-Za-z0-9\-._~!$&'()*+,;=:@/?\[\]]|%[0-9A-Fa-f]{2})*` +
		`(?:#(?:[A-Za-z0-9\-._~!$&'()*+,;=:@/?]|%[0-9A-Fa-f]{2})*)?$`)

// Classify returns Absolute when the whole target matches the absolute URI
// grammar and Relative otherwise. It is total: empty strings and
// fragment-only targets are Relative.
func Classify(target string) Kind {
	if absoluteURI.MatchString(target) {
		return Absolute
	}
	return Relative
}

// IsAbsolute reports whether target classifies as Absolute.
func IsAbsolute(target string) bool { return Classify(target) == Absolute }

// IsRelative reports whether target classifies as Relative.
func IsRelative(target string) bool { return Classify(target) == Relative }

// SplitFragment separates a target into its path part and the suffix starting
// at the first "#" or "?" (empty when neither is present).
func SplitFragment(target string) (pathPart, suffix string) {
	idx := strings.IndexAny(target, "#?")
	if idx == -1 {
		return target, ""
	}
	return target[:idx], target[idx:]
}
