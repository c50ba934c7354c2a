package dataset

// service.go orchestrates the refresh pipeline: decode -> validate ->
// stage -> promote. Refreshes are mutually exclusive; a second request
// while one is in flight is rejected with ErrRefreshInProgress, never
// queued. Queries keep serving the current version throughout.

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/portal-alcaldia/ruea-api/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Service ties the pipeline together around one storage layout.
type Service struct {
	layout  Layout
	store   *Store
	queries *Queries
	metrics *metrics.Metrics
	strict  bool

	refreshMu sync.Mutex
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithStrictValidation makes a non-empty validation report abort the
// refresh before promotion. The default is the soft policy: publish
// coerced data and keep the report for audit.
func WithStrictValidation(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithMetrics wires pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the version clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService prepares the layout, repairs any crash-interrupted promotion
// and wires the read side.
func NewService(root string, opts ...Option) (*Service, error) {
	layout, err := NewLayout(root)
	if err != nil {
		return nil, fmt.Errorf("prepare data layout: %w", err)
	}
	if err := Recover(layout); err != nil {
		return nil, fmt.Errorf("recover layout: %w", err)
	}

	s := &Service{
		layout: layout,
		store:  NewStore(layout),
		now:    time.Now,
	}
	s.queries = NewQueries(s.store)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Queries exposes the read side.
func (s *Service) Queries() *Queries { return s.queries }

// Layout exposes the storage layout (report download paths, tests).
func (s *Service) Layout() Layout { return s.layout }

// CurrentMeta reports which version and modules are live. Before the
// first publish it returns the empty meta, not an error.
func (s *Service) CurrentMeta() (Meta, error) {
	return ReadMeta(s.layout.Current())
}

// Close releases the read handle.
func (s *Service) Close() error { return s.store.Close() }

// RefreshResult summarizes a completed (synchronous) refresh.
type RefreshResult struct {
	Status   string   `json:"status"`
	Version  string   `json:"version"`
	Modules  []Module `json:"modules"`
	Failures int      `json:"failures"`
	Report   string   `json:"report,omitempty"`
}

// RefreshFromFiles ingests one uploaded file per module and publishes a
// new version synchronously. Returns ErrRefreshInProgress if another
// refresh holds the pipeline.
func (s *Service) RefreshFromFiles(ctx context.Context, files map[Module][]byte) (*RefreshResult, error) {
	if !s.refreshMu.TryLock() {
		s.rejected()
		return nil, ErrRefreshInProgress
	}
	defer s.refreshMu.Unlock()
	return s.refresh(ctx, func(ctx context.Context) (map[Module]*Table, error) {
		return decodeFiles(ctx, files)
	})
}

// ScheduleRefresh acquires the pipeline and runs RefreshFromFiles on a
// background goroutine, returning a job id immediately. The admin caller
// gets the 409-style rejection synchronously; everything after that is
// observable through logs, metrics and /meta.
func (s *Service) ScheduleRefresh(files map[Module][]byte) (string, error) {
	if !s.refreshMu.TryLock() {
		s.rejected()
		return "", ErrRefreshInProgress
	}

	jobID := uuid.NewString()
	logger := slog.Default().With("job_id", jobID)
	go func() {
		defer s.refreshMu.Unlock()
		// Detached from the request context: an accepted refresh runs to
		// completion or failure, it is never cancelled mid-stage.
		res, err := s.refresh(context.Background(), func(ctx context.Context) (map[Module]*Table, error) {
			return decodeFiles(ctx, files)
		})
		if err != nil {
			logger.Error("scheduled refresh failed", "error", err)
			return
		}
		logger.Info("scheduled refresh published",
			"version", res.Version,
			"modules", len(res.Modules),
			"validation_failures", res.Failures,
		)
	}()
	return jobID, nil
}

// RefreshFromWorkbook ingests a single master workbook. Only the registry
// module is supported on this path; sheetMap and headerRows select where
// its table lives in the workbook.
func (s *Service) RefreshFromWorkbook(ctx context.Context, workbook []byte, sheetMap map[Module]string, headerRows map[Module]int) (*RefreshResult, error) {
	if !s.refreshMu.TryLock() {
		s.rejected()
		return nil, ErrRefreshInProgress
	}
	defer s.refreshMu.Unlock()

	return s.refresh(ctx, func(ctx context.Context) (map[Module]*Table, error) {
		sheet := sheetMap[ModuleRuea]
		if sheet == "" {
			sheet = "GENERAL"
		}
		headerRow := headerRows[ModuleRuea]
		if headerRow < 1 {
			headerRow = 1
		}

		wb, err := OpenWorkbook(workbook)
		if err != nil {
			return nil, &DecodeError{Module: ModuleRuea, Err: err}
		}
		defer wb.Close()

		t, err := wb.Table(sheet, headerRow)
		if err != nil {
			return nil, &DecodeError{Module: ModuleRuea, Sheet: sheet, Err: err}
		}
		return map[Module]*Table{ModuleRuea: t}, nil
	})
}

// refresh runs one decode-stage-promote cycle. The caller must hold
// refreshMu.
func (s *Service) refresh(ctx context.Context, decode func(context.Context) (map[Module]*Table, error)) (res *RefreshResult, err error) {
	start := time.Now()
	if s.metrics != nil {
		defer func() { s.metrics.ObserveRefresh(start, err) }()
	}

	tables, err := decode(ctx)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no modules to stage")
	}

	version := NewVersion(s.now())
	logger := slog.Default().With("version", version)
	logger.Info("staging started", "modules", len(tables))

	staged, err := Stage(ctx, s.layout, version, tables)
	if err != nil {
		// The staging directory is left behind for inspection.
		logger.Error("staging failed", "error", err)
		return nil, err
	}

	failures := staged.TotalFailures()
	if failures > 0 {
		logger.Warn("validation failures recorded", "failures", failures)
	}
	if s.strict && failures > 0 {
		return nil, fmt.Errorf("%w: %d failures, staged at %s", ErrValidationFailed, failures, staged.Dir)
	}

	if err := Promote(s.layout, staged.Dir); err != nil {
		logger.Error("promotion failed", "error", err)
		return nil, err
	}

	if s.metrics != nil {
		for m, n := range staged.RowCount {
			s.metrics.RowsStaged.WithLabelValues(string(m)).Add(float64(n))
		}
	}

	meta, err := s.CurrentMeta()
	if err != nil {
		return nil, err
	}
	logger.Info("version published",
		"modules", len(meta.Modules),
		"validation_failures", failures,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &RefreshResult{
		Status:   "ok",
		Version:  version,
		Modules:  meta.Modules,
		Failures: failures,
		Report:   filepath.Join(s.layout.Current(), QualityReportFile),
	}, nil
}

// decodeFiles parses every uploaded module in parallel. The first decode
// failure cancels the rest and aborts the whole attempt.
func decodeFiles(ctx context.Context, files map[Module][]byte) (map[Module]*Table, error) {
	var mu sync.Mutex
	tables := make(map[Module]*Table, len(files))

	g, _ := errgroup.WithContext(ctx)
	for m, raw := range files {
		m, raw := m, raw
		g.Go(func() error {
			t, err := DecodeModule(m, raw)
			if err != nil {
				return err
			}
			mu.Lock()
			tables[m] = t
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

func (s *Service) rejected() {
	if s.metrics != nil {
		s.metrics.RefreshRejected.Inc()
	}
}
