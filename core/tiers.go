package core

import (
	"errors"
	"fmt"
)

// TierName is one rung of the fixed tier vocabulary.
type TierName string

const (
	TierWooden    TierName = "wooden"
	TierStone     TierName = "stone"
	TierCopper    TierName = "copper"
	TierBronze    TierName = "bronze"
	TierIron      TierName = "iron"
	TierSilver    TierName = "silver"
	TierGold      TierName = "gold"
	TierPlatinum  TierName = "platinum"
	TierDiamond   TierName = "diamond"
	TierLegendary TierName = "legendary"
)

// TierNames lists the vocabulary weakest to strongest.
var TierNames = []TierName{
	TierWooden, TierStone, TierCopper, TierBronze, TierIron,
	TierSilver, TierGold, TierPlatinum, TierDiamond, TierLegendary,
}

var tierIcons = map[TierName]string{
	TierWooden:    "🪵",
	TierStone:     "🪨",
	TierCopper:    "🟤",
	TierBronze:    "🥉",
	TierIron:      "⚙️",
	TierSilver:    "🥈",
	TierGold:      "🥇",
	TierPlatinum:  "💠",
	TierDiamond:   "💎",
	TierLegendary: "👑",
}

// TierPosition returns the 1-based vocabulary position, or 0 if unknown.
func TierPosition(name TierName) int {
	for i, n := range TierNames {
		if n == name {
			return i + 1
		}
	}
	return 0
}

// Icon returns the display icon for the tier.
func (t TierName) Icon() string { return tierIcons[t] }

// Tier is a threshold on an action counter plus the experience it is worth.
type Tier struct {
	Name      TierName `json:"name" yaml:"name"`
	Threshold int64    `json:"threshold" yaml:"threshold"`
	XP        int64    `json:"xp" yaml:"xp"`
}

// AchievementDefinition is a static catalog entry.
type AchievementDefinition struct {
	ID          AchievementID `json:"id"`
	Category    Category      `json:"category"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Action      ActionKey     `json:"action"`
	Tiers       []Tier        `json:"tiers"`
}

// Validate checks the ladder invariants: names, thresholds and rewards all
// strictly increase along the tier order.
func (d AchievementDefinition) Validate() error {
	if d.ID == "" {
		return errors.New("achievement id is empty")
	}
	if !d.Category.Valid() {
		return fmt.Errorf("achievement %s: invalid category %q", d.ID, d.Category)
	}
	if err := ValidateActionKey(d.Action); err != nil {
		return fmt.Errorf("achievement %s: %w", d.ID, err)
	}
	if len(d.Tiers) == 0 {
		return fmt.Errorf("achievement %s: no tiers", d.ID)
	}
	prevPos := 0
	var prev Tier
	for i, t := range d.Tiers {
		pos := TierPosition(t.Name)
		if pos == 0 {
			return fmt.Errorf("achievement %s: unknown tier %q", d.ID, t.Name)
		}
		if t.Threshold <= 0 || t.XP <= 0 {
			return fmt.Errorf("achievement %s: tier %s needs positive threshold and xp", d.ID, t.Name)
		}
		if i > 0 {
			if pos <= prevPos {
				return fmt.Errorf("achievement %s: tier %s out of order", d.ID, t.Name)
			}
			if t.Threshold <= prev.Threshold || t.XP <= prev.XP {
				return fmt.Errorf("achievement %s: tier %s must raise threshold and xp", d.ID, t.Name)
			}
		}
		prevPos, prev = pos, t
	}
	return nil
}

// Tier looks up a tier of this achievement by name.
func (d AchievementDefinition) Tier(name TierName) (Tier, bool) {
	for _, t := range d.Tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// XPOf returns the cumulative reward for reaching the named tier, 0 if the
// tier is not on this achievement's ladder.
func (d AchievementDefinition) XPOf(name TierName) int64 {
	t, _ := d.Tier(name)
	return t.XP
}

// ResolveTier returns the strongest tier whose threshold is <= value.
// Thresholds are strictly increasing, so the first match scanning from the
// top is the answer.
func ResolveTier(tiers []Tier, value int64) (Tier, bool) {
	for i := len(tiers) - 1; i >= 0; i-- {
		if tiers[i].Threshold <= value {
			return tiers[i], true
		}
	}
	return Tier{}, false
}
