package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-insights-api/internal/models"
	"github.com/noah-isme/attendance-insights-api/pkg/database"
	appErrors "github.com/noah-isme/attendance-insights-api/pkg/errors"
)

// AttendanceReader is the paged read contract over attendance_fact.
type AttendanceReader interface {
	FetchPage(ctx context.Context, filters models.DashboardFilters, columns []string, offset, limit int) ([]models.AttendanceRow, error)
	Count(ctx context.Context, filters models.DashboardFilters) (int, error)
}

// RowFetcherConfig bounds a single FetchAll call.
type RowFetcherConfig struct {
	PageSize int
	MaxPages int
	Timeout  time.Duration
}

// RowFetcher retrieves every attendance row matching a filter set by walking
// LIMIT/OFFSET pages one after another.
type RowFetcher struct {
	repo    AttendanceReader
	cfg     RowFetcherConfig
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRowFetcher constructs a RowFetcher.
func NewRowFetcher(repo AttendanceReader, cfg RowFetcherConfig, metrics *MetricsService, logger *zap.Logger) *RowFetcher {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RowFetcher{repo: repo, cfg: cfg, metrics: metrics, logger: logger}
}

// FetchAll returns every valid row matching filters. A failing page aborts the whole
// fetch; rows that fail validation are logged and dropped. Paging stops at the
// first page shorter than the page size, counted before validation.
func (f *RowFetcher) FetchAll(ctx context.Context, filters models.DashboardFilters, columns []string) ([]models.AttendanceRecord, error) {
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	records := make([]models.AttendanceRecord, 0)
	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, f.fetchError(err, page)
		}

		offset := page * f.cfg.PageSize
		if f.cfg.MaxPages > 0 && page == f.cfg.MaxPages {
			if err := f.confirmExhausted(ctx, filters, columns, offset); err != nil {
				return nil, err
			}
			break
		}
		start := time.Now()
		rows, err := f.repo.FetchPage(ctx, filters, columns, offset, f.cfg.PageSize)
		if err != nil {
			return nil, f.fetchError(err, page)
		}

		skipped := 0
		var firstErr error
		for _, row := range rows {
			rec, err := row.ToRecord(columns...)
			if err != nil {
				skipped++
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			records = append(records, rec)
		}
		f.metrics.ObserveFetchPage(time.Since(start), len(rows), skipped)
		if skipped > 0 {
			f.logger.Warn("skipped malformed attendance rows",
				zap.Int("offset", offset),
				zap.Int("skipped", skipped),
				zap.Error(firstErr),
			)
		}

		if len(rows) < f.cfg.PageSize {
			break
		}
	}
	return records, nil
}

// confirmExhausted checks that nothing lies beyond the last allowed page, so a
// result of exactly MaxPages full pages is still accepted.
func (f *RowFetcher) confirmExhausted(ctx context.Context, filters models.DashboardFilters, columns []string, offset int) error {
	rows, err := f.repo.FetchPage(ctx, filters, columns, offset, 1)
	if err != nil {
		return f.fetchError(err, f.cfg.MaxPages)
	}
	if len(rows) > 0 {
		return appErrors.Clone(appErrors.ErrTooLarge, fmt.Sprintf("attendance result exceeds %d pages; narrow the filters", f.cfg.MaxPages))
	}
	return nil
}

// Count returns the number of rows matching filters.
func (f *RowFetcher) Count(ctx context.Context, filters models.DashboardFilters) (int, error) {
	start := time.Now()
	total, err := f.repo.Count(ctx, filters)
	if err != nil {
		return 0, f.fetchError(err, 0)
	}
	f.metrics.ObserveDBQuery("attendance_count", time.Since(start))
	return total, nil
}

func (f *RowFetcher) fetchError(err error, page int) error {
	f.logger.Error("attendance fetch failed", zap.Int("page", page), zap.Error(err))
	switch {
	case database.IsTimeout(err):
		return appErrors.Within(appErrors.ErrDataFetch, err, "attendance query timed out")
	case database.IsSchemaError(err):
		return appErrors.Within(appErrors.ErrDataFetch, err, "attendance store schema mismatch")
	}
	return appErrors.Within(appErrors.ErrDataFetch, err, "")
}
