package dataset

// store.go owns the SQLite handles. There is no ambient connection
// singleton: the read handle lives in Store and is injected into the query
// layer, while staging opens a short-lived exclusive handle against its
// own version directory.
//
// The normalization functions from internal/textnorm are registered as
// scalar functions on the driver, so SQL predicates and sort keys apply
// the exact same Go code the caller uses to normalize parameter values.
// Write path and read path cannot drift apart because there is only one
// implementation.

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/portal-alcaldia/ruea-api/internal/textnorm"
	"modernc.org/sqlite"
)

func init() {
	register := func(name string, fn func(string) string) {
		sqlite.MustRegisterDeterministicScalarFunction(name, 1,
			func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				switch v := args[0].(type) {
				case string:
					return fn(v), nil
				case []byte:
					return fn(string(v)), nil
				case nil:
					return "", nil
				default:
					return fn(fmt.Sprint(v)), nil
				}
			})
	}
	register("norm_corregimiento", textnorm.Corregimiento)
	register("norm_vereda", textnorm.Vereda)
	register("norm_label", textnorm.Label)
}

// NormExpr returns the SQL expression computing the canonical form of a
// column, matching textnorm.Geo for the same kind. Only fixed, validated
// column names reach this function; user input is never interpolated.
func NormExpr(kind, column string) string {
	switch kind {
	case "corregimiento":
		return "norm_corregimiento(COALESCE(" + column + ",''))"
	case "vereda":
		return "norm_vereda(COALESCE(" + column + ",''))"
	default:
		return "norm_label(COALESCE(" + column + ",''))"
	}
}

// Store is the read side of the current pointer. It resolves current/ to
// an open database handle and transparently re-opens when a promotion has
// swapped the directory underneath it. Handles are reference-counted: a
// reader that resolved the previous version keeps its handle alive until
// it releases, so a promotion never closes a database mid-query.
type Store struct {
	layout Layout

	mu      sync.Mutex
	cur     *readHandle
	version string
}

// readHandle counts the readers still using one opened database. A retired
// handle closes when its last reader releases.
type readHandle struct {
	db      *sql.DB
	refs    int
	retired bool
}

// NewStore creates a Store over the layout. No database is opened until
// the first read.
func NewStore(layout Layout) *Store {
	return &Store{layout: layout}
}

// Reader returns the handle for the currently published version along with
// its manifest and a release func the caller must invoke once it is done
// querying. When nothing has ever been published it returns a nil handle
// and the empty manifest; callers treat that as an empty dataset, not an
// error. release is always non-nil and safe to call more than once.
func (s *Store) Reader(ctx context.Context) (*sql.DB, Meta, func(), error) {
	noop := func() {}
	meta, err := ReadMeta(s.layout.Current())
	if err != nil {
		return nil, Meta{}, noop, err
	}
	if meta.Version == "" {
		return nil, meta, noop, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil && s.version == meta.Version {
		s.cur.refs++
		return s.cur.db, meta, s.releaser(s.cur), nil
	}
	s.retireLocked()

	db, err := sql.Open("sqlite", "file:"+s.layout.CurrentDB()+"?mode=ro")
	if err != nil {
		return nil, meta, noop, fmt.Errorf("open current dataset: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, meta, noop, fmt.Errorf("ping current dataset: %w", err)
	}
	s.cur = &readHandle{db: db, refs: 1}
	s.version = meta.Version
	return db, meta, s.releaser(s.cur), nil
}

// retireLocked detaches the current handle so a newer version can take its
// place. Readers still holding it keep it open; it closes on the last
// release. The caller must hold s.mu.
func (s *Store) retireLocked() {
	if s.cur == nil {
		return
	}
	s.cur.retired = true
	if s.cur.refs == 0 {
		s.cur.db.Close()
	}
	s.cur = nil
	s.version = ""
}

// releaser binds one acquired reference to its handle.
func (s *Store) releaser(h *readHandle) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			h.refs--
			if h.retired && h.refs == 0 {
				h.db.Close()
			}
		})
	}
}

// Close retires the read handle. Readers still in flight finish on it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil
	}
	s.cur.retired = true
	var err error
	if s.cur.refs == 0 {
		err = s.cur.db.Close()
	}
	s.cur = nil
	s.version = ""
	return err
}

// OpenWrite opens an exclusive handle on a staging database. The staged
// file is only ever written before its version is promoted, so WAL is not
// needed and a plain journal keeps the directory self-contained.
func OpenWrite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(TRUNCATE)")
	if err != nil {
		return nil, fmt.Errorf("open staging dataset: %w", err)
	}
	// Concurrent writers never share a staging db.
	db.SetMaxOpenConns(1)
	return db, nil
}
