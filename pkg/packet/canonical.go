package packet

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Canonicalize produces the deterministic byte form of a packet's content
// used for hashing. encoding/json already sorts map[string]any keys
// lexicographically and emits compact, indentation-free UTF-8 output, which
// is exactly the canonical form this package requires: two packets with the
// same logical content, submitted with map keys in any order, canonicalize
// to identical bytes.
func Canonicalize(content Content) ([]byte, error) {
	b, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("canonicalize content: %w", err)
	}
	return b, nil
}

// ComputeHash returns the lowercase hex SHA-256 digest of a packet's
// canonicalized content — the value packet_id must equal.
func ComputeHash(content Content) (string, error) {
	canonical, err := Canonicalize(content)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
