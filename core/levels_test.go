package core

import "testing"

func TestLevelCurveBoundaries(t *testing.T) {
	c := DefaultCurve()
	if got := c.LevelForXP(0); got != 1 {
		t.Fatalf("xp 0: got level %d", got)
	}
	if got := c.LevelForXP(-5); got != 1 {
		t.Fatalf("negative xp: got level %d", got)
	}
	if got := c.LevelForXP(120850); got != 200 {
		t.Fatalf("max xp: got level %d", got)
	}
	if got := c.LevelForXP(120849); got != 199 {
		t.Fatalf("just under max: got level %d", got)
	}
	if got := c.LevelForXP(1 << 50); got != 200 {
		t.Fatalf("beyond max: got level %d", got)
	}
}

func TestLevelCurveRoundTrip(t *testing.T) {
	c := DefaultCurve()
	for l := 1; l <= c.MaxLevel; l++ {
		if got := c.LevelForXP(c.TotalXPForLevel(l)); got != l {
			t.Fatalf("round trip level %d: got %d", l, got)
		}
		if l < c.MaxLevel && c.TotalXPForLevel(l) >= c.TotalXPForLevel(l+1) {
			t.Fatalf("curve not strictly increasing at %d", l)
		}
		if l > 1 && c.LevelForXP(c.TotalXPForLevel(l)-1) != l-1 {
			t.Fatalf("one xp short of level %d should stay at %d", l, l-1)
		}
	}
}

func TestLevelCurveClamp(t *testing.T) {
	c := DefaultCurve()
	if c.TotalXPForLevel(0) != 0 || c.TotalXPForLevel(1) != 0 {
		t.Fatal("level <= 1 should require 0 xp")
	}
	if c.TotalXPForLevel(500) != c.MaxXP {
		t.Fatal("levels above max should clamp to max xp")
	}
}

func TestLevelCurveProgress(t *testing.T) {
	c := DefaultCurve()
	p := c.Progress(0)
	if p.Level != 1 || p.XPIntoLevel != 0 || p.Percent != 0 {
		t.Fatalf("unexpected progress at 0: %+v", p)
	}
	if p.XPForNextLevel != c.TotalXPForLevel(2) {
		t.Fatalf("unexpected next level cost: %+v", p)
	}

	mid := c.TotalXPForLevel(10) + (c.TotalXPForLevel(11)-c.TotalXPForLevel(10))/2
	p = c.Progress(mid)
	if p.Level != 10 || p.Percent <= 0 || p.Percent >= 100 {
		t.Fatalf("unexpected mid-level progress: %+v", p)
	}
	if p.XPIntoLevel+p.XPToNextLevel != p.XPForNextLevel {
		t.Fatalf("inconsistent breakdown: %+v", p)
	}

	p = c.Progress(c.MaxXP + 10)
	if p.Level != c.MaxLevel || p.Percent != 100 || p.XPToNextLevel != 0 {
		t.Fatalf("unexpected max progress: %+v", p)
	}
}

func TestLevelCurveValidate(t *testing.T) {
	if err := DefaultCurve().Validate(); err != nil {
		t.Fatal(err)
	}
	if (LevelCurve{MaxLevel: 1, MaxXP: 100}).Validate() == nil {
		t.Fatal("expected error for max level 1")
	}
	if (LevelCurve{MaxLevel: 100, MaxXP: 50}).Validate() == nil {
		t.Fatal("expected error for flat curve")
	}
}
