package dataset

// publish.go promotes a staged version to current. Both steps are
// same-volume directory renames, so a reader either resolves the old
// version or the new one, never a half-written tree.
//
// A plain archive-then-promote order would leave no current at all if the
// process died between the two renames. Promotion therefore moves the
// outgoing version to a sentinel name first, restores it if the promote
// rename fails, and Recover re-installs it on startup if a crash struck
// between the renames.

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// displacedPrefix marks an outgoing current version that has not reached
// the archive yet.
const displacedPrefix = ".displaced-"

// Promote atomically swaps the staged directory into current and moves the
// displaced version into the archive keyed by its own id. The caller must
// serialize promotions; two concurrent calls are undefined.
func Promote(layout Layout, stagedDir string) error {
	cur := layout.Current()

	oldMeta, err := ReadMeta(cur)
	if err != nil {
		return fmt.Errorf("read outgoing manifest: %w", err)
	}

	var displaced string
	if oldMeta.Version != "" {
		displaced = filepath.Join(layout.Root, displacedPrefix+oldMeta.Version)
		if err := os.Rename(cur, displaced); err != nil {
			return fmt.Errorf("displace current: %w", err)
		}
	}

	if err := os.Rename(stagedDir, cur); err != nil {
		if displaced != "" {
			if restoreErr := os.Rename(displaced, cur); restoreErr != nil {
				return errors.Join(
					fmt.Errorf("promote staged version: %w", err),
					fmt.Errorf("restore displaced current: %w", restoreErr),
				)
			}
		}
		return fmt.Errorf("promote staged version: %w", err)
	}

	if displaced != "" {
		if err := os.Rename(displaced, layout.Archive(oldMeta.Version)); err != nil {
			// The new version is live; the old one is stranded under the
			// sentinel name. Recover moves it to the archive on the next
			// startup.
			return fmt.Errorf("archive displaced version %s: %w", oldMeta.Version, err)
		}
	}
	return nil
}

// Recover repairs the layout after a crash mid-promotion. A displaced
// directory with no current means the promote rename never happened: the
// displaced version is put back. A displaced directory alongside a live
// current just missed its archive move and is archived now.
func Recover(layout Layout) error {
	entries, err := os.ReadDir(layout.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	curMeta, err := ReadMeta(layout.Current())
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), displacedPrefix) {
			continue
		}
		version := strings.TrimPrefix(e.Name(), displacedPrefix)
		displaced := filepath.Join(layout.Root, e.Name())

		if curMeta.Version == "" {
			if err := os.Rename(displaced, layout.Current()); err != nil {
				return fmt.Errorf("restore displaced version %s: %w", version, err)
			}
			curMeta.Version = version
			continue
		}
		if err := os.Rename(displaced, layout.Archive(version)); err != nil {
			return fmt.Errorf("archive displaced version %s: %w", version, err)
		}
	}
	return nil
}

// ArchivedVersions lists the superseded version ids, oldest first.
func ArchivedVersions(layout Layout) ([]string, error) {
	entries, err := os.ReadDir(layout.ArchiveRoot())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	return versions, nil
}
