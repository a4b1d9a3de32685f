package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SQLite locking is unreliable on network mounts, so the state database is
// refused anywhere a network filesystem is detected.
var networkFSTypes = []string{"afpfs", "cifs", "nfs", "smbfs", "smb2", "webdav"}

// fsTypeDetector reports the filesystem type for a path. Overridable in tests;
// the real implementations are per-OS.
var fsTypeDetector = detectFilesystemType

func ensureLocalFilesystem(path string) error {
	if path == "" {
		return fmt.Errorf("sqlite path is empty")
	}

	probe, err := nearestExistingAncestor(path)
	if err != nil {
		return fmt.Errorf("resolve database path %q: %w", path, err)
	}

	fsType, err := fsTypeDetector(probe)
	if err != nil {
		return fmt.Errorf("detect filesystem for %q: %w", probe, err)
	}
	if isNetworkFS(fsType) {
		return fmt.Errorf(
			"database path %q sits on network filesystem %q; SQLite needs local disk for its locks. Point state.path at a local directory",
			path, fsType,
		)
	}
	return nil
}

// nearestExistingAncestor walks up from path until something exists. The
// database file itself usually does not exist yet on first start.
func nearestExistingAncestor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	for candidate := abs; ; candidate = filepath.Dir(candidate) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}
		if filepath.Dir(candidate) == candidate {
			return "", fmt.Errorf("no existing parent for %q", abs)
		}
	}
}

func isNetworkFS(fsType string) bool {
	normalized := strings.TrimSpace(strings.ToLower(fsType))
	for _, t := range networkFSTypes {
		if normalized == t {
			return true
		}
	}
	return false
}
