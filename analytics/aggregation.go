package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tamaskk/foodybackend-sub000/core"
)

// AggregationPeriod represents different time periods for aggregation
type AggregationPeriod string

const (
	PeriodDaily   AggregationPeriod = "daily"
	PeriodWeekly  AggregationPeriod = "weekly"
	PeriodMonthly AggregationPeriod = "monthly"
)

// AggregatedData represents aggregated analytics data
type AggregatedData struct {
	Period    AggregationPeriod `json:"period"`
	Key       string            `json:"key"` // e.g., "2024-01-01" for daily, "2024-W01" for weekly
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`

	ActiveUsers   int   `json:"active_users"`
	Actions       int64 `json:"actions"`
	Unlocks       int64 `json:"unlocks"`
	Upgrades      int64 `json:"upgrades"`
	XPAwarded     int64 `json:"xp_awarded"`
	LevelsReached int64 `json:"levels_reached"`

	CreatedAt time.Time `json:"created_at"`
}

// AggregationEngine rolls the per-day metrics up into daily, weekly and
// monthly records.
type AggregationEngine struct {
	mu sync.RWMutex

	metrics *ComprehensiveMetrics
	logger  *slog.Logger

	aggregations map[AggregationPeriod]map[string]*AggregatedData

	aggregationInterval time.Duration
	lastAggregation     time.Time
}

func NewAggregationEngine(metrics *ComprehensiveMetrics, aggregationInterval time.Duration, logger *slog.Logger) *AggregationEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregationEngine{
		metrics: metrics,
		logger:  logger,
		aggregations: map[AggregationPeriod]map[string]*AggregatedData{
			PeriodDaily:   {},
			PeriodWeekly:  {},
			PeriodMonthly: {},
		},
		aggregationInterval: aggregationInterval,
	}
}

// OnEvent forwards events to the underlying metrics hook
func (ae *AggregationEngine) OnEvent(e core.Event) {
	ae.metrics.OnEvent(e)
}

// AggregateNow forces an immediate aggregation of all periods
func (ae *AggregationEngine) AggregateNow() error {
	return ae.aggregateAt(time.Now())
}

func (ae *AggregationEngine) aggregateAt(now time.Time) error {
	now = now.UTC()
	ae.mu.Lock()
	defer ae.mu.Unlock()

	ae.store(ae.aggregateDaily(now))
	ae.store(ae.aggregateWeekly(now))
	ae.store(ae.aggregateMonthly(now))
	ae.lastAggregation = now
	return nil
}

func (ae *AggregationEngine) store(d *AggregatedData) {
	ae.aggregations[d.Period][d.Key] = d
}

// sumDays adds up the day totals in [start, end).
func (ae *AggregationEngine) sumDays(d *AggregatedData) {
	var t DayTotals
	for day := d.StartTime; day.Before(d.EndTime); day = day.AddDate(0, 0, 1) {
		t.add(ae.metrics.GetDayTotals(dayKey(day)))
	}
	d.Actions = t.Actions
	d.Unlocks = t.Unlocks
	d.Upgrades = t.Upgrades
	d.XPAwarded = t.XPAwarded
	d.LevelsReached = t.LevelsReached
}

func (ae *AggregationEngine) aggregateDaily(now time.Time) *AggregatedData {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	d := &AggregatedData{
		Period:    PeriodDaily,
		Key:       dayKey(now),
		StartTime: start,
		EndTime:   start.AddDate(0, 0, 1),
		CreatedAt: now,
	}
	d.ActiveUsers = ae.metrics.GetDailyActiveUsers(d.Key)
	ae.sumDays(d)
	return d
}

// aggregateWeekly aggregates the ISO week containing now.
func (ae *AggregationEngine) aggregateWeekly(now time.Time) *AggregatedData {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	start := time.Date(now.Year(), now.Month(), now.Day()-daysSinceMonday, 0, 0, 0, 0, time.UTC)
	d := &AggregatedData{
		Period:    PeriodWeekly,
		Key:       getWeekKey(now),
		StartTime: start,
		EndTime:   start.AddDate(0, 0, 7),
		CreatedAt: now,
	}
	d.ActiveUsers = ae.metrics.GetWeeklyActiveUsers(d.Key)
	ae.sumDays(d)
	return d
}

func (ae *AggregationEngine) aggregateMonthly(now time.Time) *AggregatedData {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	d := &AggregatedData{
		Period:    PeriodMonthly,
		Key:       getMonthKey(now),
		StartTime: start,
		EndTime:   start.AddDate(0, 1, 0),
		CreatedAt: now,
	}
	d.ActiveUsers = ae.metrics.GetMonthlyActiveUsers(d.Key)
	ae.sumDays(d)
	return d
}

// GetAggregatedData returns aggregated data for a specific period and key
func (ae *AggregationEngine) GetAggregatedData(period AggregationPeriod, key string) (*AggregatedData, bool) {
	ae.mu.RLock()
	defer ae.mu.RUnlock()
	data, exists := ae.aggregations[period][key]
	return data, exists
}

// GetAllAggregatedData returns all aggregated data for a specific period,
// oldest first.
func (ae *AggregationEngine) GetAllAggregatedData(period AggregationPeriod) []*AggregatedData {
	ae.mu.RLock()
	defer ae.mu.RUnlock()
	result := make([]*AggregatedData, 0, len(ae.aggregations[period]))
	for _, data := range ae.aggregations[period] {
		result = append(result, data)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Start aggregates periodically until ctx is done.
func (ae *AggregationEngine) Start(ctx context.Context) {
	ticker := time.NewTicker(ae.aggregationInterval)
	defer ticker.Stop()

	if err := ae.AggregateNow(); err != nil {
		ae.logger.Error("initial aggregation failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ae.AggregateNow(); err != nil {
				ae.logger.Error("periodic aggregation failed", "error", err)
			}
		}
	}
}

// ExportData exports aggregated data to JSON format
func (ae *AggregationEngine) ExportData(period AggregationPeriod) ([]byte, error) {
	switch period {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
	default:
		return nil, fmt.Errorf("unknown period %q", period)
	}
	return json.MarshalIndent(ae.GetAllAggregatedData(period), "", "  ")
}
