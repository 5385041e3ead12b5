package circuits

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/consensys/gnark/backend/groth16"
)

// HashBytesSHA256 returns the SHA256 hash of the provided byte slice.
func HashBytesSHA256(content []byte) (string, error) {
	hasher := sha256.New()
	if _, err := hasher.Write(content); err != nil {
		return "", fmt.Errorf("hash bytes: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifyingKeyID returns the SHA256 hash of a verifying key's serialized
// form. Segment proofs carry it so the pipeline can reject proofs built for
// a different base circuit before any witness solving starts.
func VerifyingKeyID(vk groth16.VerifyingKey) (string, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("serialize verifying key: %w", err)
	}
	return HashBytesSHA256(buf.Bytes())
}
