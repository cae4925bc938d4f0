package serde

import (
	"encoding/json"

	"github.com/roach88/rewind/internal/ir"
)

// HashPolicy transforms a serialized argument before it is stored or
// compared. Apply must be deterministic.
type HashPolicy interface {
	Apply(data []byte) []byte
}

// Identity stores arguments unchanged.
type Identity struct{}

// Apply returns data unchanged.
func (Identity) Apply(data []byte) []byte {
	return data
}

// Digest replaces every non-null argument with a JSON string holding its
// canonical fingerprint. Null stays null so presence checks still work.
type Digest struct{}

// Apply returns `"sha256:<hex>"` for non-null payloads.
func (Digest) Apply(data []byte) []byte {
	if IsNullPayload(data) {
		return []byte("null")
	}
	fp := ir.FingerprintBytes(ir.DomainArgument, data)
	out, _ := json.Marshal("sha256:" + fp)
	return out
}

// PolicyFor returns Digest when hashing is enabled, Identity otherwise.
func PolicyFor(hashArguments bool) HashPolicy {
	if hashArguments {
		return Digest{}
	}
	return Identity{}
}
