package core

import "testing"

var testLadder = []Tier{
	{Name: TierWooden, Threshold: 1, XP: 10},
	{Name: TierStone, Threshold: 5, XP: 25},
	{Name: TierCopper, Threshold: 10, XP: 50},
}

func TestTierPosition(t *testing.T) {
	if TierPosition(TierWooden) != 1 || TierPosition(TierLegendary) != 10 {
		t.Fatal("unexpected vocabulary positions")
	}
	if TierPosition("mithril") != 0 {
		t.Fatal("unknown tier should be position 0")
	}
	for _, n := range TierNames {
		if n.Icon() == "" {
			t.Fatalf("tier %s has no icon", n)
		}
	}
}

func TestResolveTier(t *testing.T) {
	cases := []struct {
		value int64
		want  TierName
		ok    bool
	}{
		{0, "", false},
		{1, TierWooden, true},
		{4, TierWooden, true},
		{5, TierStone, true},
		{9, TierStone, true},
		{12, TierCopper, true},
		{1 << 40, TierCopper, true},
	}
	for _, c := range cases {
		got, ok := ResolveTier(testLadder, c.value)
		if ok != c.ok || got.Name != c.want {
			t.Fatalf("value %d: got %q %v want %q %v", c.value, got.Name, ok, c.want, c.ok)
		}
	}
}

func TestDefinitionValidate(t *testing.T) {
	def := AchievementDefinition{ID: "recipe_creator", Category: CategoryCooking, Action: "recipes_created", Tiers: testLadder}
	if err := def.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if def.XPOf(TierCopper) != 50 || def.XPOf(TierGold) != 0 {
		t.Fatal("unexpected XPOf")
	}

	bad := def
	bad.Tiers = []Tier{{Name: TierStone, Threshold: 5, XP: 25}, {Name: TierWooden, Threshold: 10, XP: 50}}
	if bad.Validate() == nil {
		t.Fatal("expected out-of-order tier error")
	}
	bad.Tiers = []Tier{{Name: TierWooden, Threshold: 5, XP: 25}, {Name: TierStone, Threshold: 5, XP: 50}}
	if bad.Validate() == nil {
		t.Fatal("expected non-increasing threshold error")
	}
	bad.Tiers = []Tier{{Name: TierWooden, Threshold: 1, XP: 25}, {Name: TierStone, Threshold: 5, XP: 20}}
	if bad.Validate() == nil {
		t.Fatal("expected non-increasing xp error")
	}
	bad = def
	bad.Category = "gaming"
	if bad.Validate() == nil {
		t.Fatal("expected category error")
	}
}
