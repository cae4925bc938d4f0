// Package diff implements the structural comparator used to decide whether a
// live payload still matches its recording.
//
// Both sides are parsed into ir.IRValue trees and walked together. Each
// difference is reported as an Entry carrying its kind (ADD, MODIFY, REMOVE,
// MOVE), a path of segments and the two values. Array positions render as
// the wildcard segment "*" so a single ignore pattern covers every element:
//
//	expected {"items":[{"id":1,"ts":5}]}
//	actual   {"items":[{"id":1,"ts":6}]}
//	→ MODIFY /items/*/ts expected=5 actual=6
//
// Arrays are matched order-insensitively. An exact pass pairs elements with
// identical content (reporting MOVE when the position changed); a best-effort
// pass pairs the remaining objects with the candidate producing the fewest
// differences, restricted to candidates whose keys are a superset of the
// expected element's keys. Ties go to the lowest actual index so output is
// deterministic. Anything left over is REMOVE (expected only) or ADD (actual
// only).
//
// Ignore rules are applied to every entry as it is produced, including the
// scratch comparisons made while pairing array elements, so an element that
// differs only in ignored fields still pairs exactly.
package diff
