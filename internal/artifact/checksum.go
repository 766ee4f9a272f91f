package artifact

import (
	"crypto/sha256"
	"encoding/hex"
)

const checksumPrefix = "sha256:"

// Checksum returns a stable content digest for data.
func Checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return checksumPrefix + hex.EncodeToString(hash[:])
}

// Verify reports whether data matches want. An empty want always matches.
func Verify(data []byte, want string) bool {
	return want == "" || Checksum(data) == want
}
