package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tamaskk/foodybackend-sub000/core"
)

// DefaultLanguage is used whenever a translation is missing.
const DefaultLanguage = "en"

// Text is the copy of one achievement in one language. Description and the
// per-tier overrides may contain a {threshold} placeholder.
type Text struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description"`
	Tiers       map[core.TierName]string `yaml:"tiers,omitempty"`
}

// Copy is a lookup table of presentation strings keyed by achievement id,
// language and tier name.
type Copy struct {
	texts map[core.AchievementID]map[string]Text
}

func NewCopy(texts map[core.AchievementID]map[string]Text) Copy {
	return Copy{texts: texts}
}

func (c Copy) lookup(id core.AchievementID, lang string) (Text, bool) {
	byLang := c.texts[id]
	if t, ok := byLang[lang]; ok {
		return t, true
	}
	t, ok := byLang[DefaultLanguage]
	return t, ok
}

// Name returns the localized achievement name, falling back to the id.
func (c Copy) Name(id core.AchievementID, lang string) string {
	if t, ok := c.lookup(id, lang); ok && t.Name != "" {
		return t.Name
	}
	return string(id)
}

// Description returns the text for reaching tier of def in lang.
func (c Copy) Description(def core.AchievementDefinition, tier core.TierName, lang string) string {
	threshold := int64(0)
	if t, ok := def.Tier(tier); ok {
		threshold = t.Threshold
	}
	tmpl := def.Description
	if t, ok := c.lookup(def.ID, lang); ok {
		if s, ok := t.Tiers[tier]; ok {
			tmpl = s
		} else if t.Description != "" {
			tmpl = t.Description
		}
	}
	return strings.ReplaceAll(tmpl, "{threshold}", strconv.FormatInt(threshold, 10))
}

// TierLabel renders a tier as "🥇 Gold".
func TierLabel(tier core.TierName) string {
	name := string(tier)
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return fmt.Sprintf("%s %s", tier.Icon(), name)
}
