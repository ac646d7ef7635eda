package change

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/patchgate-project/patchgate/pkg/fsutil"
	"github.com/patchgate-project/patchgate/pkg/model"
)

const backupSuffix = ".bak"

// backupName builds the backup filename for a target path at a given
// unix-seconds timestamp: <basename>_<seconds>.bak. Two backups of the
// same file within one second land on the same name and overwrite.
func backupName(path string, unixSec int64) string {
	return fmt.Sprintf("%s_%d%s", model.BaseName(path), unixSec, backupSuffix)
}

// ParseBackupName splits a backup filename back into the original
// basename and the timestamp it was taken at.
func ParseBackupName(name string) (base string, unixSec int64, ok bool) {
	if !strings.HasSuffix(name, backupSuffix) {
		return "", 0, false
	}
	stem := strings.TrimSuffix(name, backupSuffix)
	idx := strings.LastIndex(stem, "_")
	if idx <= 0 {
		return "", 0, false
	}
	ts, err := strconv.ParseInt(stem[idx+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return stem[:idx], ts, true
}

// writeBackup snapshots content into dir under the backup name for path
// and returns the full backup path. The directory is created on first
// use.
func writeBackup(dir, path, content string, unixSec int64) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	backupPath := filepath.Join(dir, backupName(path, unixSec))
	if err := fsutil.AtomicWrite(backupPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return backupPath, nil
}

// LatestBackup returns the most recent backup of path inside dir, or ""
// when none exists. Recency is decided by the timestamp embedded in the
// filename, not file mtime.
func LatestBackup(dir, path string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read backup dir: %w", err)
	}

	want := model.BaseName(path)
	var best string
	var bestTS int64 = -1
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base, ts, ok := ParseBackupName(entry.Name())
		if !ok || base != want {
			continue
		}
		if ts > bestTS {
			bestTS = ts
			best = filepath.Join(dir, entry.Name())
		}
	}
	return best, nil
}

// ListBackups returns every backup file in dir keyed by original
// basename, each list ordered oldest first. Files that do not parse as
// backups are ignored.
func ListBackups(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]string{}, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	out := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base, _, ok := ParseBackupName(entry.Name())
		if !ok {
			continue
		}
		out[base] = append(out[base], filepath.Join(dir, entry.Name()))
	}
	for base := range out {
		paths := out[base]
		sort.Slice(paths, func(i, j int) bool {
			_, ti, _ := ParseBackupName(filepath.Base(paths[i]))
			_, tj, _ := ParseBackupName(filepath.Base(paths[j]))
			return ti < tj
		})
	}
	return out, nil
}
