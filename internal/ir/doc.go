// Package ir provides the generic semantic value used to compare recorded and
// live payloads.
//
// Every serialized payload the harness handles (request and response
// snapshots, argument fragments, return values) is parsed into an IRValue
// tree before comparison. The tree is independent of any concrete codec: the
// structural comparator in internal/diff only ever sees these six types.
//
// Key design constraints:
//   - IRValue is sealed: IRNull, IRBool, IRNumber, IRString, IRArray, IRObject
//   - Numbers keep their literal text (json.Number) so large integers never
//     lose precision; equality is numeric, not textual
//   - Object keys iterate in RFC 8785 order (UTF-16 code units) wherever
//     order is observable
//   - ir imports nothing internal
package ir
