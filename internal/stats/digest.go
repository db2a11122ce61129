package stats

import (
	"crypto/md5"
	"encoding/hex"
)

// DigestSize is the length of a digest string in hex characters.
const DigestSize = md5.Size * 2

// Digest returns the lowercase hex MD5 of payload.
func Digest(payload []byte) string {
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}
