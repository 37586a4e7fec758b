package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Fingerprint streams r through SHA-256 and returns the hex digest. The
// reader is rewound to its start afterwards so the store step can re-read
// the same bytes.
func Fingerprint(r io.ReadSeeker) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind content after hashing: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
