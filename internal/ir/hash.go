package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainSpec    = "streamir/spec/v1"
	DomainVerdict = "streamir/verdict/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecHash identifies a compiled specification. Two StreamIRs with the same
// declarations and evaluation order hash identically.
func SpecHash(s *StreamIR) string {
	return hashWithDomain(DomainSpec, []byte(IRVersion+"\n"+Format(s)))
}

// VerdictHash hashes a canonical verdict document.
// Returns error if doc cannot be canonically marshaled.
func VerdictHash(doc Object) (string, error) {
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("VerdictHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainVerdict, canonical), nil
}

// MustVerdictHash is like VerdictHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustVerdictHash(doc Object) string {
	h, err := VerdictHash(doc)
	if err != nil {
		panic(err)
	}
	return h
}
