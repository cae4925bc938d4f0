// Package harness runs record-then-replay scenarios against the engine.
//
// A scenario describes one request served twice. The record phase runs under
// PROFILE and captures every operation call into an in-memory sink. The
// replay phase runs the same request under a replay mode (TEST by default),
// with live call results that the engine is expected to override, and the
// harness checks what came back.
//
// # Scenario Format
//
//	name: checkout_price_regression
//	description: "A changed total is reported as COMPARE_FAILED"
//	correlation_id: req-1
//	request: { sku: A, qty: 2 }
//	record:
//	  calls:
//	    - operation: pricing.Quote
//	      args: [A]
//	      return: 3
//	  response: { total: 6 }
//	replay:
//	  mode: TEST
//	  calls:
//	    - operation: pricing.Quote
//	      args: [A]
//	      return: 99
//	  response: { total: 8 }
//	assertions:
//	  - type: outcome
//	    label: COMPARE_FAILED
//	  - type: diff
//	    kind: MODIFY
//	    path: /total
//
// Omitting replay.response reuses record.response. Setting replay.concurrent
// runs the replay calls on an engine.WorkerPool instead of one after another.
//
// # Assertion Types
//
//   - outcome: the TEST outcome label
//   - diff: a difference of the given kind (optional) at path
//   - diff_count: the exact number of differences
//   - unconsumed: the exact set of operations with unreplayed entries
//   - call_result: the return, error message or runtime error code observed
//     by replay call number index
//   - recorded: the number of entries stored for an operation
//
// # Deterministic Testing
//
// Every run uses a fresh testutil.MemorySink and a testutil.FixedIDGenerator,
// so traces are identical across runs and can be compared with golden files
// (see RunWithGolden).
package harness
