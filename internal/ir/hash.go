package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainDraft prefixes draft digests. The version suffix allows a later
// algorithm change.
const DomainDraft = "formguard/draft/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DraftDigest computes the content digest of a draft stored under key.
// The autosaver compares digests to skip rewriting an unchanged draft.
func DraftDigest(key string, data IRObject) (string, error) {
	if data == nil {
		data = IRObject{}
	}
	canonical, err := MarshalCanonical(IRObject{
		"key":  IRString(key),
		"data": data,
	})
	if err != nil {
		return "", fmt.Errorf("DraftDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDraft, canonical), nil
}

// MustDraftDigest is like DraftDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDraftDigest(key string, data IRObject) string {
	d, err := DraftDigest(key, data)
	if err != nil {
		panic(err)
	}
	return d
}
