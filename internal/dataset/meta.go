package dataset

// meta.go reads and writes the per-version manifest. The manifest is the
// read side's source of truth for which version is live; a missing
// manifest is the documented empty state, not an error.

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Meta is the manifest written into every version directory.
type Meta struct {
	Version   string
	CreatedAt string
	Modules   []Module
}

type metaJSON struct {
	Version   *string  `json:"version"`
	CreatedAt *string  `json:"created_at"`
	Modules   []Module `json:"modules"`
}

// MarshalJSON emits the documented empty shape {null, null, []} when no
// version has ever been published.
func (m Meta) MarshalJSON() ([]byte, error) {
	out := metaJSON{Modules: m.Modules}
	if out.Modules == nil {
		out.Modules = []Module{}
	}
	if m.Version != "" {
		out.Version = &m.Version
	}
	if m.CreatedAt != "" {
		out.CreatedAt = &m.CreatedAt
	}
	return json.Marshal(out)
}

func (m *Meta) UnmarshalJSON(b []byte) error {
	var in metaJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*m = Meta{Modules: in.Modules}
	if in.Version != nil {
		m.Version = *in.Version
	}
	if in.CreatedAt != nil {
		m.CreatedAt = *in.CreatedAt
	}
	return nil
}

// HasModule reports whether the version contains the module.
func (m Meta) HasModule(mod Module) bool {
	for _, have := range m.Modules {
		if have == mod {
			return true
		}
	}
	return false
}

// ReadMeta loads the manifest from a version directory. A missing
// directory or manifest yields the empty Meta and no error.
func ReadMeta(dir string) (Meta, error) {
	b, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Meta{}, nil
	}
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// WriteMeta persists the manifest into a version directory.
func WriteMeta(dir string, m Meta) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, MetaFile), b, 0o640)
}
