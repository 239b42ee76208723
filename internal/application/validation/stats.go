package validation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/facturasegura/backend/internal/domain/validation"
)

// defaultStatsPeriod is used when the caller supplies no period
const defaultStatsPeriod = 24 * time.Hour

// StatsService aggregates persisted validation outcomes for reporting
type StatsService struct {
	results validation.ResultRepository
}

// NewStatsService creates the statistics service
func NewStatsService(results validation.ResultRepository) *StatsService {
	return &StatsService{results: results}
}

// Stats reports per-type counts, success rate and average response time over
// the requested period.
func (s *StatsService) Stats(ctx context.Context, period string) ([]validation.TypeStats, time.Time, error) {
	d, err := ParsePeriod(period)
	if err != nil {
		return nil, time.Time{}, err
	}
	since := time.Now().Add(-d)
	stats, err := s.results.StatsSince(ctx, since)
	if err != nil {
		return nil, time.Time{}, err
	}
	return stats, since, nil
}

// ParsePeriod parses a reporting window such as "24h", "90m" or "7d".
// Go duration syntax is accepted as-is; a trailing "d" means days.
func ParsePeriod(period string) (time.Duration, error) {
	period = strings.TrimSpace(period)
	if period == "" {
		return defaultStatsPeriod, nil
	}
	if strings.HasSuffix(period, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(period, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid period %q", period)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(period)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid period %q", period)
	}
	return d, nil
}
