package dataset

import (
	"os"
	"path/filepath"
	"time"
)

// DatabaseFile is the per-version SQLite file holding base tables and
// derived rollups.
const DatabaseFile = "dataset.db"

// MetaFile is the per-version manifest.
const MetaFile = "meta.json"

// Layout maps the storage root to the directories the pipeline uses.
// current/ is the single mutable pointer read by all queries; staging/
// holds versions under construction; archive/ keeps every superseded
// version indefinitely.
type Layout struct {
	Root string
}

// NewLayout creates the directory skeleton under root.
func NewLayout(root string) (Layout, error) {
	l := Layout{Root: root}
	for _, dir := range []string{l.Root, l.StagingRoot(), l.ArchiveRoot()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return Layout{}, err
		}
	}
	return l, nil
}

func (l Layout) Current() string     { return filepath.Join(l.Root, "current") }
func (l Layout) StagingRoot() string { return filepath.Join(l.Root, "staging") }
func (l Layout) ArchiveRoot() string { return filepath.Join(l.Root, "archive") }

// Staging returns the directory for a version under construction.
func (l Layout) Staging(version string) string {
	return filepath.Join(l.StagingRoot(), version)
}

// Archive returns a superseded version's resting place.
func (l Layout) Archive(version string) string {
	return filepath.Join(l.ArchiveRoot(), version)
}

// CurrentDB is the path queries read from.
func (l Layout) CurrentDB() string {
	return filepath.Join(l.Current(), DatabaseFile)
}

// NewVersion derives a version id from the clock. Ids sort
// lexicographically in creation order; colons are avoided so the id is
// safe as a directory name everywhere. Fractional seconds keep two
// back-to-back refreshes from colliding.
func NewVersion(now time.Time) string {
	return now.UTC().Format("2006-01-02T15-04-05.000000000Z")
}
