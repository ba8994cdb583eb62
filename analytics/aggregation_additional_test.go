package analytics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tamaskk/foodybackend-sub000/core"
)

func TestAggregationEngineWeeklyMonthly(t *testing.T) {
	metrics := NewComprehensiveMetrics()

	// Seed events across days
	base := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC) // Wednesday
	evs := []core.Event{
		{Type: core.EventActionRecorded, UserID: "alice", Action: "recipes_created", Amount: 1, Time: base},
		{Type: core.EventActionRecorded, UserID: "bob", Action: "likes_given", Amount: 2, Time: base.AddDate(0, 0, 1)}, // Thu
		{Type: core.EventAchievementUnlocked, UserID: "alice", AchievementID: "recipe_creator", Tier: core.TierWooden, XP: 10, Time: base.AddDate(0, 0, 2)}, // Fri
		{Type: core.EventActionRecorded, UserID: "carol", Action: "likes_given", Amount: 5, Time: base.AddDate(0, 0, 5)}, // next Mon
	}
	for _, ev := range evs {
		metrics.OnEvent(ev)
	}

	ae := NewAggregationEngine(metrics, time.Hour, nil)
	if err := ae.aggregateAt(base); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	weekly, ok := ae.GetAggregatedData(PeriodWeekly, "2024-W01")
	if !ok {
		t.Fatalf("missing weekly data")
	}
	if weekly.Actions != 3 || weekly.Unlocks != 1 || weekly.XPAwarded != 10 || weekly.ActiveUsers != 2 {
		t.Fatalf("unexpected weekly agg: %+v", weekly)
	}
	if weekly.StartTime.Weekday() != time.Monday {
		t.Fatalf("week should start on Monday, got %s", weekly.StartTime.Weekday())
	}

	monthly, ok := ae.GetAggregatedData(PeriodMonthly, "2024-01")
	if !ok {
		t.Fatalf("missing monthly data")
	}
	if monthly.Actions != 8 || monthly.Unlocks != 1 || monthly.ActiveUsers != 3 {
		t.Fatalf("unexpected monthly agg: %+v", monthly)
	}

	daily, ok := ae.GetAggregatedData(PeriodDaily, "2024-01-03")
	if !ok || daily.Actions != 1 || daily.ActiveUsers != 1 {
		t.Fatalf("unexpected daily agg: %+v", daily)
	}
}

func TestAggregationExport(t *testing.T) {
	metrics := NewComprehensiveMetrics()
	ae := NewAggregationEngine(metrics, time.Hour, nil)
	if err := ae.aggregateAt(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	if err := ae.aggregateAt(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}

	raw, err := ae.ExportData(PeriodDaily)
	if err != nil {
		t.Fatal(err)
	}
	var out []AggregatedData
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].Key != "2024-01-02" {
		t.Fatalf("unexpected export: %+v", out)
	}

	if _, err := ae.ExportData("yearly"); err == nil {
		t.Fatal("expected error for unknown period")
	}
}
