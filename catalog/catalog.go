// Package catalog holds the static achievement definitions and their
// presentation copy. A Catalog is immutable once loaded.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tamaskk/foodybackend-sub000/core"
)

//go:embed achievements.yaml
var defaultCatalog []byte

// Catalog is a read-only, versioned set of achievement definitions.
type Catalog struct {
	version  int
	defs     []core.AchievementDefinition
	byID     map[core.AchievementID]int
	byAction map[core.ActionKey][]int
	copy     Copy
}

type fileLadder struct {
	Thresholds []int64 `yaml:"thresholds"`
	XP         []int64 `yaml:"xp"`
}

type fileTier struct {
	Threshold int64 `yaml:"threshold"`
	XP        int64 `yaml:"xp"`
}

type fileAchievement struct {
	ID       core.AchievementID `yaml:"id"`
	Category core.Category      `yaml:"category"`
	Action   core.ActionKey     `yaml:"action"`
	Ladder   string             `yaml:"ladder"`
	Tiers    []fileTier         `yaml:"tiers"`
	Copy     map[string]Text    `yaml:"copy"`
}

type fileCatalog struct {
	Version      int                   `yaml:"version"`
	Ladders      map[string]fileLadder `yaml:"ladders"`
	Achievements []fileAchievement     `yaml:"achievements"`
}

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(fmt.Sprintf("embedded achievement catalog is invalid: %v", err))
	}
	return c
}

// LoadFile reads a catalog document from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses and validates a YAML catalog document.
func Load(r io.Reader) (*Catalog, error) {
	var doc fileCatalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	defs := make([]core.AchievementDefinition, 0, len(doc.Achievements))
	texts := make(map[core.AchievementID]map[string]Text, len(doc.Achievements))
	for _, a := range doc.Achievements {
		tiers, err := buildTiers(a, doc.Ladders)
		if err != nil {
			return nil, err
		}
		en := a.Copy[DefaultLanguage]
		defs = append(defs, core.AchievementDefinition{
			ID:          a.ID,
			Category:    a.Category,
			Name:        en.Name,
			Description: en.Description,
			Action:      a.Action,
			Tiers:       tiers,
		})
		texts[a.ID] = a.Copy
	}
	return New(doc.Version, defs, NewCopy(texts))
}

func buildTiers(a fileAchievement, ladders map[string]fileLadder) ([]core.Tier, error) {
	var raw []fileTier
	switch {
	case a.Ladder != "" && len(a.Tiers) > 0:
		return nil, fmt.Errorf("achievement %s: set either ladder or tiers, not both", a.ID)
	case a.Ladder != "":
		l, ok := ladders[a.Ladder]
		if !ok {
			return nil, fmt.Errorf("achievement %s: unknown ladder %q", a.ID, a.Ladder)
		}
		if len(l.Thresholds) != len(l.XP) {
			return nil, fmt.Errorf("ladder %s: thresholds and xp differ in length", a.Ladder)
		}
		for i := range l.Thresholds {
			raw = append(raw, fileTier{Threshold: l.Thresholds[i], XP: l.XP[i]})
		}
	default:
		raw = a.Tiers
	}
	if len(raw) > len(core.TierNames) {
		return nil, fmt.Errorf("achievement %s: %d tiers exceed the %d-rung vocabulary", a.ID, len(raw), len(core.TierNames))
	}
	tiers := make([]core.Tier, len(raw))
	for i, t := range raw {
		tiers[i] = core.Tier{Name: core.TierNames[i], Threshold: t.Threshold, XP: t.XP}
	}
	return tiers, nil
}

// New builds a catalog from definitions. Every ladder must be a prefix of
// the tier vocabulary so that a tier's position equals the number of tiers
// unlocked.
func New(version int, defs []core.AchievementDefinition, text Copy) (*Catalog, error) {
	c := &Catalog{
		version:  version,
		defs:     make([]core.AchievementDefinition, 0, len(defs)),
		byID:     make(map[core.AchievementID]int, len(defs)),
		byAction: make(map[core.ActionKey][]int),
		copy:     text,
	}
	var errs []error
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		for i, t := range d.Tiers {
			if t.Name != core.TierNames[i] {
				errs = append(errs, fmt.Errorf("achievement %s: tier %d must be %s, got %s", d.ID, i+1, core.TierNames[i], t.Name))
			}
		}
		if _, dup := c.byID[d.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate achievement id %s", d.ID))
			continue
		}
		d.Tiers = append([]core.Tier(nil), d.Tiers...)
		c.byID[d.ID] = len(c.defs)
		c.byAction[d.Action] = append(c.byAction[d.Action], len(c.defs))
		c.defs = append(c.defs, d)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Version identifies the catalog revision.
func (c *Catalog) Version() int { return c.version }

// All returns a copy of every definition in catalog order.
func (c *Catalog) All() []core.AchievementDefinition {
	out := make([]core.AchievementDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get looks up a definition by id.
func (c *Catalog) Get(id core.AchievementID) (core.AchievementDefinition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return core.AchievementDefinition{}, false
	}
	return c.defs[i], true
}

// ForAction returns every achievement fed by the action key. Unknown keys
// yield nil.
func (c *Catalog) ForAction(key core.ActionKey) []core.AchievementDefinition {
	idx := c.byAction[key]
	if len(idx) == 0 {
		return nil
	}
	out := make([]core.AchievementDefinition, len(idx))
	for i, j := range idx {
		out[i] = c.defs[j]
	}
	return out
}

// Actions lists the tracked action keys in sorted order.
func (c *Catalog) Actions() []core.ActionKey {
	out := make([]core.ActionKey, 0, len(c.byAction))
	for k := range c.byAction {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// XPOf returns the cumulative reward of a tier of an achievement.
func (c *Catalog) XPOf(id core.AchievementID, tier core.TierName) int64 {
	d, ok := c.Get(id)
	if !ok {
		return 0
	}
	return d.XPOf(tier)
}

// Copy returns the presentation text table.
func (c *Catalog) Copy() Copy { return c.copy }
