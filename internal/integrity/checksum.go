// Package integrity provides content hashing for change records and the
// files they track. Hashes drive conflict detection: a tracked file whose
// on-disk hash matches neither the original nor the proposed content was
// modified by someone else.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/patchgate-project/patchgate/pkg/model"
)

// HashContent computes the SHA-256 of raw bytes.
func HashContent(data []byte) model.HashValue {
	hash := sha256.Sum256(data)
	return model.HashValue(hex.EncodeToString(hash[:]))
}

// HashLines computes the SHA-256 of lines joined with newlines. Records
// store line slices, so this is the canonical content hash form.
func HashLines(lines []string) model.HashValue {
	return HashContent([]byte(strings.Join(lines, "\n")))
}

// HashFile streams a file's content through SHA-256.
func HashFile(path string) (model.HashValue, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return model.HashValue(hex.EncodeToString(h.Sum(nil))), nil
}
