package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Checksum identifies a bytecode blob by its SHA-256 hash.
type Checksum [ChecksumLen]byte

func (cs Checksum) String() string {
	return hex.EncodeToString(cs[:])
}

// MarshalJSON implements the json.Marshaler interface for Checksum.
// It converts the checksum to a hex-encoded string.
func (cs Checksum) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(cs[:]))
}

// ChecksumLen is the length of a checksum in bytes.
const ChecksumLen = 32

// ParseChecksum decodes a hex-encoded checksum.
func ParseChecksum(input string) (Checksum, error) {
	data, err := hex.DecodeString(input)
	if err != nil {
		return Checksum{}, fmt.Errorf("invalid checksum: %w", err)
	}
	if len(data) != ChecksumLen {
		return Checksum{}, fmt.Errorf("got %d bytes for checksum, want %d", len(data), ChecksumLen)
	}
	var cs Checksum
	copy(cs[:], data)
	return cs, nil
}

// ChecksumOf hashes bytecode.
func ChecksumOf(bytecode []byte) Checksum {
	return Checksum(sha256.Sum256(bytecode))
}

// Bytes returns the checksum as a byte slice.
func (cs Checksum) Bytes() []byte {
	return cs[:]
}
