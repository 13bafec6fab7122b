// Package fsutil writes generated reports to disk.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// OwnerConfig holds parsed UID/GID for file ownership.
type OwnerConfig struct {
	UID int
	GID int
}

// ParseOwner parses "UID:GID" or "UID". A missing GID is left unchanged
// on chown. Returns nil if empty.
func ParseOwner(owner string) (*OwnerConfig, error) {
	if owner == "" {
		return nil, nil //nolint:nilnil // no owner requested
	}

	uidStr, gidStr, hasGID := strings.Cut(owner, ":")

	uid, err := strconv.Atoi(uidStr)
	if err != nil || uid < 0 {
		return nil, fmt.Errorf("invalid UID %q in owner %q", uidStr, owner)
	}

	gid := -1

	if hasGID {
		gid, err = strconv.Atoi(gidStr)
		if err != nil || gid < 0 {
			return nil, fmt.Errorf("invalid GID %q in owner %q", gidStr, owner)
		}
	}

	return &OwnerConfig{UID: uid, GID: gid}, nil
}

// Chown sets ownership if owner is not nil.
func Chown(path string, owner *OwnerConfig) error {
	if owner == nil {
		return nil
	}

	if err := os.Chown(path, owner.UID, owner.GID); err != nil {
		return fmt.Errorf("chown %s: %w", path, err)
	}

	return nil
}

// WriteFile writes data next to path and renames it into place, so readers
// never observe a partial report. Missing parent directories are created.
func WriteFile(path string, data []byte, perm os.FileMode, owner *OwnerConfig) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpName := tmp.Name()

	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()

		return fmt.Errorf("writing %s: %w", tmpName, err)
	}

	if err := tmp.Close(); err != nil {
		cleanup()

		return fmt.Errorf("closing %s: %w", tmpName, err)
	}

	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()

		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}

	if err := Chown(tmpName, owner); err != nil {
		cleanup()

		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		cleanup()

		return fmt.Errorf("renaming into %s: %w", path, err)
	}

	return nil
}
