package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainArgument = "rewind/argument/v1"
	DomainRecord   = "rewind/record/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator - CRITICAL for security
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns the domain-separated SHA-256 of the canonical form of v.
// Two values that compare equal structurally (key order, number spelling,
// Unicode normalization) share a fingerprint.
func Fingerprint(domain string, v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// FingerprintBytes fingerprints a JSON document. Payloads that are not JSON
// are hashed as raw bytes.
func FingerprintBytes(domain string, data []byte) string {
	v, err := Parse(data)
	if err != nil {
		return hashWithDomain(domain, data)
	}
	fp, err := Fingerprint(domain, v)
	if err != nil {
		return hashWithDomain(domain, data)
	}
	return fp
}
