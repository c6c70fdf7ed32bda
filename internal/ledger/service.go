package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const dateLayout = "2006-01-02"

// Service assembles daily summaries. Closed days are immutable so they cache
// hard; the current day caches briefly because payments keep arriving.
type Service struct {
	repo     Repository
	cache    *redis.Client
	todayTTL time.Duration
	logger   *slog.Logger
	group    singleflight.Group
	printer  *message.Printer
	now      func() time.Time
}

// closedDayTTL bounds how long a finished day's summary lives in redis.
const closedDayTTL = 24 * time.Hour

func NewService(repo Repository, cache *redis.Client, todayTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if todayTTL <= 0 {
		todayTTL = time.Minute
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		todayTTL: todayTTL,
		logger:   logger,
		printer:  message.NewPrinter(language.MustParse("en-IN")),
		now:      time.Now,
	}
}

// DailySummary returns the summary for the given calendar day.
func (s *Service) DailySummary(ctx context.Context, date time.Time) (*DailySummary, error) {
	day := date.Truncate(24 * time.Hour)
	key := "ledger:daily:" + day.Format(dateLayout)

	if cached := s.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	// Concurrent dashboard loads collapse into one build per day key.
	result, err, _ := s.group.Do(key, func() (any, error) {
		summary, err := s.build(ctx, day, day.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
		summary.Date = day.Format(dateLayout)
		s.store(ctx, key, summary, s.ttlFor(day))
		return summary, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*DailySummary), nil
}

// MonthlySummary aggregates one calendar month.
func (s *Service) MonthlySummary(ctx context.Context, year int, month time.Month) (*DailySummary, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	key := fmt.Sprintf("ledger:monthly:%04d-%02d", year, month)

	if cached := s.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		summary, err := s.build(ctx, from, to)
		if err != nil {
			return nil, err
		}
		summary.Date = from.Format("2006-01")
		ttl := closedDayTTL
		if !to.Before(s.now()) {
			ttl = s.todayTTL
		}
		s.store(ctx, key, summary, ttl)
		return summary, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*DailySummary), nil
}

// Snapshot rebuilds a day from scratch, persists the summary row and
// refreshes the cache. The nightly close job calls this once the day is
// over.
func (s *Service) Snapshot(ctx context.Context, date time.Time) (*DailySummary, error) {
	day := date.Truncate(24 * time.Hour)
	s.Invalidate(ctx, day)

	summary, err := s.build(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	summary.Date = day.Format(dateLayout)
	if err := s.repo.SaveSnapshot(ctx, summary); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	s.store(ctx, "ledger:daily:"+summary.Date, summary, s.ttlFor(day))
	return summary, nil
}

// Now returns the current instant on the service clock. Handlers use it
// for default dates so the whole module answers from one clock.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// Invalidate drops the cached summary for a day, used when a backdated
// record or expense changes history.
func (s *Service) Invalidate(ctx context.Context, date time.Time) {
	if s.cache == nil {
		return
	}
	key := "ledger:daily:" + date.Truncate(24*time.Hour).Format(dateLayout)
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("ledger cache invalidation failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) build(ctx context.Context, from, to time.Time) (*DailySummary, error) {
	collections, err := s.repo.CollectionsByMethod(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("collections: %w", err)
	}
	refunded, err := s.repo.RefundTotal(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("refunds: %w", err)
	}
	sales, services, invoices, err := s.repo.CompletedCounts(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("counts: %w", err)
	}
	expenses, err := s.repo.ExpenseTotal(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("expenses: %w", err)
	}

	var collected float64
	for _, v := range collections {
		collected += v
	}

	summary := &DailySummary{
		CollectionsByMethod: collections,
		TotalCollected:      collected,
		TotalRefunded:       refunded,
		NetCollected:        collected - refunded,
		ExpenseTotal:        expenses,
		NetCash:             collected - refunded - expenses,
		SalesCompleted:      sales,
		ServicesCompleted:   services,
		InvoicesIssued:      invoices,
	}
	summary.Display = DisplayAmounts{
		TotalCollected: s.FormatAmount(summary.TotalCollected),
		TotalRefunded:  s.FormatAmount(summary.TotalRefunded),
		NetCollected:   s.FormatAmount(summary.NetCollected),
		ExpenseTotal:   s.FormatAmount(summary.ExpenseTotal),
		NetCash:        s.FormatAmount(summary.NetCash),
	}
	return summary, nil
}

// FormatAmount renders a rupee figure with Indian digit grouping,
// e.g. 123456.5 -> "₹1,23,456.50".
func (s *Service) FormatAmount(v float64) string {
	return s.printer.Sprintf("₹%v", number.Decimal(v,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

func (s *Service) ttlFor(day time.Time) time.Duration {
	if day.AddDate(0, 0, 1).Before(s.now()) {
		return closedDayTTL
	}
	return s.todayTTL
}

func (s *Service) fromCache(ctx context.Context, key string) *DailySummary {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var summary DailySummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		s.logger.Warn("corrupt ledger cache entry", slog.String("key", key))
		_ = s.cache.Del(ctx, key).Err()
		return nil
	}
	return &summary
}

func (s *Service) store(ctx context.Context, key string, summary *DailySummary, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl).Err(); err != nil {
		s.logger.Warn("ledger cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}
