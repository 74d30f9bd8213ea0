package mongoschema

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	// CodeUnsupportedShape flags a shape combination the deriver cannot
	// encode: an internally tagged newtype variant around a non-struct,
	// non-map payload, an internally tagged tuple variant, or a map whose
	// key kind is not representable as text.
	CodeUnsupportedShape = "unsupported_shape"
	// CodeMalformedBound flags both an inclusive and an exclusive bound
	// supplied for the same side.
	CodeMalformedBound = "malformed_bound"
	// CodeNonNumericBound flags a numeric bound applied to a shape that is
	// not a numeric primitive.
	CodeNonNumericBound = "non_numeric_bound"
	// CodeUnresolvedGeneric flags a generic placeholder that reached the
	// deriver without being substituted via shape.Bind.
	CodeUnresolvedGeneric = "unresolved_generic"
)

// Issue represents a single configuration error detected during derivation.
type Issue struct {
	Path    string // Shape path (for example: /fields/age or /variants/A).
	Code    string // One of the codes listed above.
	Message string
	Hint    string // Optional: remediation hints.
}

// Issues is a collection of configuration errors that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. unsupported_shape at /variants/Bar
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}
