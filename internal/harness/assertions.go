package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Trace    []CallEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		buf.WriteString("\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%s %d] %s(%s) -> %s\n", ev.Phase, ev.Index, ev.Operation, renderArgs(ev.Args), renderResult(ev))
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertOutcome:
		return assertOutcome(result, a)
	case AssertDiff:
		return assertDiff(result, a)
	case AssertDiffCount:
		return assertDiffCount(result, a)
	case AssertUnconsumed:
		return assertUnconsumed(result, a)
	case AssertCallResult:
		return assertCallResult(result, a)
	case AssertRecorded:
		return assertRecorded(result, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertOutcome(result *Result, a Assertion) error {
	if result.Outcome == a.Label {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutcome,
		Expected: a.Label,
		Actual:   orNone(result.Outcome),
		Trace:    result.Trace,
	}
}

func assertDiff(result *Result, a Assertion) error {
	for _, d := range result.Diffs {
		if d.Path.String() != a.Path {
			continue
		}
		if a.Kind == "" {
			return nil
		}
		if k, _ := diff.ParseKind(a.Kind); d.Kind == k {
			return nil
		}
	}

	want := a.Path
	if a.Kind != "" {
		want = strings.ToUpper(a.Kind) + " " + a.Path
	}
	return &AssertionError{
		Type:     AssertDiff,
		Expected: "difference " + want,
		Actual:   renderDiffs(result.Diffs),
		Trace:    result.Trace,
	}
}

func assertDiffCount(result *Result, a Assertion) error {
	if len(result.Diffs) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertDiffCount,
		Expected: fmt.Sprintf("%d difference(s)", a.Count),
		Actual:   fmt.Sprintf("%d: %s", len(result.Diffs), renderDiffs(result.Diffs)),
		Trace:    result.Trace,
	}
}

func assertUnconsumed(result *Result, a Assertion) error {
	want := slices.Sorted(slices.Values(a.Operations))
	got := slices.Sorted(slices.Values(result.Unconsumed))
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertUnconsumed,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    result.Trace,
	}
}

func assertCallResult(result *Result, a Assertion) error {
	calls := result.ReplayCalls()
	if a.Index >= len(calls) {
		return fmt.Errorf("replay call %d was not made (%d call(s))", a.Index, len(calls))
	}
	ev := calls[a.Index]

	ok := ev.Code == a.Code && ev.Error == a.Error
	if a.Code == "" && a.Error == "" {
		ok = ok && sameValue(ev.Return, a.Return)
	}
	if ok {
		return nil
	}
	return &AssertionError{
		Type:     AssertCallResult,
		Expected: fmt.Sprintf("replay call %d -> %s", a.Index, renderResult(CallEvent{Return: a.Return, Error: a.Error, Code: a.Code})),
		Actual:   fmt.Sprintf("replay call %d -> %s", a.Index, renderResult(ev)),
		Trace:    result.Trace,
	}
}

func assertRecorded(result *Result, a Assertion) error {
	if n := result.Recorded[a.Operation]; n != a.Count {
		return &AssertionError{
			Type:     AssertRecorded,
			Expected: fmt.Sprintf("%d entr(ies) for %s", a.Count, a.Operation),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    result.Trace,
		}
	}
	return nil
}

func renderArgs(args []any) string {
	parts := make([]string, len(args))
	for i, v := range args {
		parts[i] = renderValue(v)
	}
	return strings.Join(parts, ", ")
}

func renderResult(ev CallEvent) string {
	switch {
	case ev.Code != "":
		return "code " + ev.Code
	case ev.Error != "":
		return fmt.Sprintf("error %q", ev.Error)
	default:
		return renderValue(ev.Return)
	}
}

func renderValue(v any) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func renderDiffs(diffs []diff.Entry) string {
	if len(diffs) == 0 {
		return "no differences"
	}
	parts := make([]string, len(diffs))
	for i, d := range diffs {
		parts[i] = d.String()
	}
	return strings.Join(parts, "; ")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
