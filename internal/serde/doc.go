// Package serde is the serialization collaborator used by the recorder and
// replayer.
//
// Codec turns live values into bytes and back. The bundled JSONCodec is
// deterministic (map keys sorted, no HTML escaping) so the same argument
// serializes identically across runs, which the replayer relies on when it
// compares a live argument against its recording.
//
// HashPolicy optionally replaces argument snapshots by a one-way fingerprint
// before they are stored. The replayer must apply the same policy to live
// arguments, so matching still works without the raw values ever reaching
// the sink.
package serde
