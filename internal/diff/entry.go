package diff

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/rewind/internal/ir"
)

// Kind classifies a single difference.
type Kind string

const (
	// KindAdd marks a value present only in the actual payload.
	KindAdd Kind = "ADD"
	// KindModify marks a value present on both sides with different content.
	KindModify Kind = "MODIFY"
	// KindRemove marks a value present only in the expected payload.
	KindRemove Kind = "REMOVE"
	// KindMove marks an array element with equal content at a different index.
	KindMove Kind = "MOVE"
)

// Kinds lists every Kind in a stable order.
var Kinds = []Kind{KindAdd, KindModify, KindRemove, KindMove}

// ParseKind resolves a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown diff kind %q: must be one of %v", s, Kinds)
}

// Wildcard is the segment rendered for any array position.
const Wildcard = "*"

// Path addresses a node in a tree as an ordered list of segments.
type Path []string

// Child returns a new path with seg appended. The receiver is never modified,
// so sibling paths never share a backing array.
func (p Path) Child(seg string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// String renders the path as "/a/*/b". The root renders as "/".
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	return "/" + strings.Join(p, "/")
}

// Entry is one difference between expected and actual.
// Expected is nil for ADD, Actual is nil for REMOVE.
type Entry struct {
	Kind     Kind
	Path     Path
	Expected ir.IRValue
	Actual   ir.IRValue
}

// String renders the entry on one line, e.g. "MODIFY /b expected=2 actual=3".
func (e Entry) String() string {
	switch e.Kind {
	case KindAdd:
		return fmt.Sprintf("%s %s actual=%s", e.Kind, e.Path, ir.String(e.Actual))
	case KindRemove:
		return fmt.Sprintf("%s %s expected=%s", e.Kind, e.Path, ir.String(e.Expected))
	default:
		return fmt.Sprintf("%s %s expected=%s actual=%s", e.Kind, e.Path, ir.String(e.Expected), ir.String(e.Actual))
	}
}

type entryJSON struct {
	Kind     Kind            `json:"kind"`
	Path     string          `json:"path"`
	Expected json.RawMessage `json:"expected,omitempty"`
	Actual   json.RawMessage `json:"actual,omitempty"`
}

// MarshalJSON renders the path as a string and omits the missing side.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{Kind: e.Kind, Path: e.Path.String()}
	if e.Expected != nil {
		b, err := ir.MarshalIRValue(e.Expected)
		if err != nil {
			return nil, fmt.Errorf("marshal expected: %w", err)
		}
		out.Expected = b
	}
	if e.Actual != nil {
		b, err := ir.MarshalIRValue(e.Actual)
		if err != nil {
			return nil, fmt.Errorf("marshal actual: %w", err)
		}
		out.Actual = b
	}
	return json.Marshal(out)
}
