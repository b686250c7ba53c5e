package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash returns the first 16 hex characters of the SHA-256 digest of
// content, matching the teacher's checkpoint.RepoHash convention
// (hex.EncodeToString(h[:8])).
func ContentHash(content string) string {
	h := sha256.Sum256([]byte(content))

	return hex.EncodeToString(h[:8])
}

// SanitizePath replaces path separators and dots with underscores, matching
// spec.md's on-disk path sanitization rule. It is not reversible; the
// authoritative file_path lives inside the JSON record.
func SanitizePath(path string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ".", "_")

	return replacer.Replace(path)
}
