// Package routepath canonicalizes navigation targets before they are sent
// to the authority.
package routepath

import (
	"errors"
	"strings"
)

// Result is a canonicalized target.
type Result struct {
	// Path is the canonical path, without query or fragment.
	Path string

	// Query is the query string without the leading "?".
	Query string

	// Changed reports whether Path differs from the input path.
	Changed bool
}

// String returns the path with its query, if any.
func (r Result) String() string {
	if r.Query != "" {
		return r.Path + "?" + r.Query
	}
	return r.Path
}

// Canonicalization errors.
var (
	ErrNotRelative          = errors.New("path is not relative")
	ErrBackslashInPath      = errors.New("path contains backslash")
	ErrNullByteInPath       = errors.New("path contains null byte")
	ErrInvalidPercentEscape = errors.New("invalid percent escape sequence")
	ErrPathEscapesRoot      = errors.New("path escapes root via ..")
)

// Canonicalize normalizes a relative navigation target:
//   - a fragment is dropped and the query kept verbatim
//   - a leading slash is added, repeated slashes collapse
//   - "." segments are removed and ".." segments resolved
//   - a trailing slash is removed, except for "/"
//
// Absolute and scheme-relative URLs, backslashes, NUL bytes, malformed
// percent escapes and ".." above the root are rejected.
func Canonicalize(input string) (Result, error) {
	input, _, _ = strings.Cut(input, "#")
	if input == "" {
		return Result{Path: "/", Changed: true}, nil
	}
	path, query, _ := strings.Cut(input, "?")

	if strings.HasPrefix(path, "//") || strings.Contains(path, "://") {
		return Result{}, ErrNotRelative
	}
	if strings.Contains(path, "\\") {
		return Result{}, ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return Result{}, ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return Result{}, err
		}
	}

	original := path
	segments := strings.Split(path, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
		case "..":
			if len(out) == 0 {
				return Result{}, ErrPathEscapesRoot
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}

	path = "/" + strings.Join(out, "/")
	return Result{
		Path:    path,
		Query:   query,
		Changed: path != original,
	}, nil
}

// validatePercentEscapes checks that every "%" starts a %XX hex escape.
func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// SameDocument reports whether target differs from current only by its
// fragment, so following it needs no navigation.
func SameDocument(current, target string) bool {
	cur, _, _ := strings.Cut(current, "#")
	tgt, frag, hasFrag := strings.Cut(target, "#")
	return hasFrag && frag != "" && cur == tgt
}
