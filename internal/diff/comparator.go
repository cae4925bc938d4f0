package diff

import (
	"bytes"

	"github.com/roach88/rewind/internal/ir"
)

// Comparator computes structural differences between two payloads.
//
// Thread-safety: a Comparator is immutable after construction and safe for
// concurrent use.
type Comparator struct {
	ignore *IgnoreRules
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithIgnoreRules installs compiled ignore rules.
func WithIgnoreRules(r *IgnoreRules) Option {
	return func(c *Comparator) {
		c.ignore = r
	}
}

// New creates a Comparator.
func New(opts ...Option) *Comparator {
	c := &Comparator{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compare parses both payloads and returns *ComparisonFailedError when any
// non-ignored difference remains. If either payload is not JSON the payloads
// are compared byte for byte and a mismatch is a single MODIFY at the root.
func (c *Comparator) Compare(expected, actual []byte) error {
	ev, eerr := ir.Parse(expected)
	av, aerr := ir.Parse(actual)
	if eerr != nil || aerr != nil {
		if bytes.Equal(expected, actual) {
			return nil
		}
		var out []Entry
		c.emit(&out, Entry{
			Kind:     KindModify,
			Path:     Path{},
			Expected: ir.IRString(expected),
			Actual:   ir.IRString(actual),
		})
		if len(out) == 0 {
			return nil
		}
		return &ComparisonFailedError{Diffs: out}
	}

	if diffs := c.Diff(ev, av); len(diffs) > 0 {
		return &ComparisonFailedError{Diffs: diffs}
	}
	return nil
}

// Diff returns the non-ignored differences between two trees.
// A nil side means "missing": Diff(nil, v) is a single ADD at the root.
func (c *Comparator) Diff(expected, actual ir.IRValue) []Entry {
	var out []Entry
	c.diffValues(Path{}, expected, actual, &out)
	return out
}

func (c *Comparator) emit(out *[]Entry, e Entry) {
	if c.ignore.Ignored(e) {
		return
	}
	*out = append(*out, e)
}

// diffValues dispatches on the shape of both sides.
func (c *Comparator) diffValues(path Path, expected, actual ir.IRValue, out *[]Entry) {
	switch {
	case expected == nil && actual == nil:
		return
	case expected == nil:
		c.emit(out, Entry{Kind: KindAdd, Path: path, Actual: actual})
		return
	case actual == nil:
		c.emit(out, Entry{Kind: KindRemove, Path: path, Expected: expected})
		return
	}

	switch ev := expected.(type) {
	case ir.IRObject:
		if av, ok := actual.(ir.IRObject); ok {
			c.diffObjects(path, ev, av, out)
			return
		}
	case ir.IRArray:
		if av, ok := actual.(ir.IRArray); ok {
			c.diffArrays(path, ev, av, out)
			return
		}
	default:
		if ir.ScalarEqual(expected, actual) {
			return
		}
	}

	// Unequal scalars or mismatched shapes
	c.emit(out, Entry{Kind: KindModify, Path: path, Expected: expected, Actual: actual})
}

// diffObjects visits expected's keys first, then keys only actual has.
func (c *Comparator) diffObjects(path Path, expected, actual ir.IRObject, out *[]Entry) {
	for _, k := range expected.SortedKeys() {
		c.diffValues(path.Child(k), expected[k], actual[k], out)
	}
	for _, k := range actual.SortedKeys() {
		if _, ok := expected[k]; ok {
			continue
		}
		c.emit(out, Entry{Kind: KindAdd, Path: path.Child(k), Actual: actual[k]})
	}
}

// diffArrays pairs elements regardless of order. See the package doc for the
// three passes.
func (c *Comparator) diffArrays(path Path, expected, actual ir.IRArray, out *[]Entry) {
	elemPath := path.Child(Wildcard)
	matchedExpected := make([]bool, len(expected))
	matchedActual := make([]bool, len(actual))

	// Exact pass: first zero-diff candidate wins.
	for i := range expected {
		for j := range actual {
			if matchedActual[j] {
				continue
			}
			if !c.equal(elemPath, expected[i], actual[j]) {
				continue
			}
			matchedExpected[i] = true
			matchedActual[j] = true
			if i != j {
				c.emit(out, Entry{Kind: KindMove, Path: elemPath, Expected: expected[i], Actual: actual[j]})
			}
			break
		}
	}

	// Best-effort pass: objects only, candidates must carry every expected key.
	for i := range expected {
		if matchedExpected[i] {
			continue
		}
		eobj, ok := expected[i].(ir.IRObject)
		if !ok {
			continue
		}

		best := -1
		var bestDiffs []Entry
		for j := range actual {
			if matchedActual[j] {
				continue
			}
			aobj, ok := actual[j].(ir.IRObject)
			if !ok || !aobj.HasKeys(eobj) {
				continue
			}
			var scratch []Entry
			c.diffObjects(elemPath, eobj, aobj, &scratch)
			// Strict less-than keeps the lowest index on ties.
			if best == -1 || len(scratch) < len(bestDiffs) {
				best = j
				bestDiffs = scratch
			}
		}
		if best == -1 {
			continue
		}
		matchedExpected[i] = true
		matchedActual[best] = true
		*out = append(*out, bestDiffs...)
	}

	for i := range expected {
		if !matchedExpected[i] {
			c.emit(out, Entry{Kind: KindRemove, Path: elemPath, Expected: expected[i]})
		}
	}
	for j := range actual {
		if !matchedActual[j] {
			c.emit(out, Entry{Kind: KindAdd, Path: elemPath, Actual: actual[j]})
		}
	}
}

// equal runs a throwaway diff; nothing reaches the caller's list.
func (c *Comparator) equal(path Path, expected, actual ir.IRValue) bool {
	var scratch []Entry
	c.diffValues(path, expected, actual, &scratch)
	return len(scratch) == 0
}
