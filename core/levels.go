package core

import (
	"errors"
	"math"
	"sort"
)

const (
	DefaultMaxLevel = 200
	DefaultMaxXP    = 120850
)

// LevelCurve maps accumulated experience to a level on a quadratic curve:
// level 1 costs nothing and MaxXP buys MaxLevel.
type LevelCurve struct {
	MaxLevel int
	MaxXP    int64
}

// DefaultCurve is the production curve.
func DefaultCurve() LevelCurve {
	return LevelCurve{MaxLevel: DefaultMaxLevel, MaxXP: DefaultMaxXP}
}

// Validate rejects curves that would not be strictly increasing.
func (c LevelCurve) Validate() error {
	if c.MaxLevel < 2 {
		return errors.New("max level must be at least 2")
	}
	// each level must cost at least one more xp than the previous
	if span := int64(c.MaxLevel-1) * int64(c.MaxLevel-1); c.MaxXP < span {
		return errors.New("max xp must be at least (max level - 1)^2")
	}
	return nil
}

// TotalXPForLevel returns the experience required to reach level l.
func (c LevelCurve) TotalXPForLevel(l int) int64 {
	if l <= 1 {
		return 0
	}
	if l >= c.MaxLevel {
		return c.MaxXP
	}
	span := float64(c.MaxLevel-1) * float64(c.MaxLevel-1)
	steps := float64(l-1) * float64(l-1)
	return int64(math.Round(float64(c.MaxXP) / span * steps))
}

// LevelForXP returns the greatest level whose requirement is <= xp.
func (c LevelCurve) LevelForXP(xp int64) int {
	if xp <= 0 {
		return 1
	}
	if xp >= c.MaxXP {
		return c.MaxLevel
	}
	// first level in (1, MaxLevel] that costs more than xp, minus one
	n := sort.Search(c.MaxLevel-1, func(i int) bool {
		return c.TotalXPForLevel(i+2) > xp
	})
	return n + 1
}

// XPProgress describes where an experience total sits within its level.
type XPProgress struct {
	Level          int     `json:"level"`
	Experience     int64   `json:"experience"`
	XPIntoLevel    int64   `json:"xp_into_level"`
	XPForNextLevel int64   `json:"xp_for_next_level"`
	XPToNextLevel  int64   `json:"xp_to_next_level"`
	Percent        float64 `json:"percent"`
}

// Progress derives the level breakdown for xp.
func (c LevelCurve) Progress(xp int64) XPProgress {
	if xp < 0 {
		xp = 0
	}
	level := c.LevelForXP(xp)
	p := XPProgress{Level: level, Experience: xp}
	if level >= c.MaxLevel {
		p.XPIntoLevel = xp - c.TotalXPForLevel(c.MaxLevel)
		p.Percent = 100
		return p
	}
	floor := c.TotalXPForLevel(level)
	next := c.TotalXPForLevel(level + 1)
	p.XPIntoLevel = xp - floor
	p.XPForNextLevel = next - floor
	p.XPToNextLevel = next - xp
	p.Percent = float64(p.XPIntoLevel) / float64(p.XPForNextLevel) * 100
	return p
}
