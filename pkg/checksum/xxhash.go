package checksum

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Sum returns the xxhash64 digest of content as a hex string. Used to
// fingerprint captured exports in the audit log.
func Sum(content string) string {
	digest := xxhash.New()
	digest.Write([]byte(content))

	return hex.EncodeToString(digest.Sum(nil))
}

// GetFileChecksum hashes a file on disk, for fingerprinting seed files.
func GetFileChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to copy file content to hasher for file %s: %w", filePath, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
