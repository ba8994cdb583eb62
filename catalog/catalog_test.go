package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamaskk/foodybackend-sub000/core"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c := Default()
	require.NotEmpty(t, c.All())
	assert.Equal(t, 3, c.Version())

	seen := map[core.AchievementID]bool{}
	categories := map[core.Category]bool{}
	for _, d := range c.All() {
		assert.False(t, seen[d.ID], "duplicate id %s", d.ID)
		seen[d.ID] = true
		categories[d.Category] = true
		assert.NoError(t, d.Validate())
		assert.NotEmpty(t, d.Name, "achievement %s has no english name", d.ID)
	}
	for _, cat := range []core.Category{core.CategoryCooking, core.CategorySocial, core.CategoryCommunity} {
		assert.True(t, categories[cat], "category %s has no achievements", cat)
	}
}

func TestRecipeCreatorLadder(t *testing.T) {
	d, ok := Default().Get("recipe_creator")
	require.True(t, ok)
	require.Len(t, d.Tiers, 10)
	assert.Equal(t, core.Tier{Name: core.TierWooden, Threshold: 1, XP: 10}, d.Tiers[0])
	assert.Equal(t, core.Tier{Name: core.TierStone, Threshold: 5, XP: 25}, d.Tiers[1])
	assert.Equal(t, core.Tier{Name: core.TierCopper, Threshold: 10, XP: 50}, d.Tiers[2])
	assert.Equal(t, core.ActionKey("recipes_created"), d.Action)
}

func TestExplicitTiers(t *testing.T) {
	d, ok := Default().Get("recipe_sharer")
	require.True(t, ok)
	require.Len(t, d.Tiers, 6)
	assert.Equal(t, core.TierSilver, d.Tiers[5].Name)
	assert.Equal(t, int64(700), Default().XPOf("recipe_sharer", core.TierSilver))
}

func TestForAction(t *testing.T) {
	c := Default()
	defs := c.ForAction("likes_given")
	require.Len(t, defs, 1)
	assert.Equal(t, core.AchievementID("generous_liker"), defs[0].ID)
	assert.Nil(t, c.ForAction("no_such_action"))
	assert.Contains(t, c.Actions(), core.ActionKey("followers"))
}

func TestActionFeedsSeveralAchievements(t *testing.T) {
	tiers := []core.Tier{{Name: core.TierWooden, Threshold: 1, XP: 5}}
	c, err := New(1, []core.AchievementDefinition{
		{ID: "a", Category: core.CategoryCooking, Action: "recipes_saved", Tiers: tiers},
		{ID: "b", Category: core.CategorySocial, Action: "recipes_saved", Tiers: tiers},
	}, Copy{})
	require.NoError(t, err)
	assert.Len(t, c.ForAction("recipes_saved"), 2)
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	ok := []core.Tier{{Name: core.TierWooden, Threshold: 1, XP: 5}}
	_, err := New(1, []core.AchievementDefinition{
		{ID: "a", Category: core.CategoryCooking, Action: "x", Tiers: ok},
		{ID: "a", Category: core.CategoryCooking, Action: "x", Tiers: ok},
	}, Copy{})
	assert.Error(t, err)

	_, err = New(1, []core.AchievementDefinition{
		{ID: "gap", Category: core.CategoryCooking, Action: "x", Tiers: []core.Tier{{Name: core.TierStone, Threshold: 1, XP: 5}}},
	}, Copy{})
	assert.Error(t, err, "ladders must start at the weakest tier")
}

func TestLoadRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"unknown ladder": `
version: 1
achievements:
  - {id: a, category: cooking, action: x, ladder: nope}
`,
		"both ladder and tiers": `
version: 1
ladders:
  l: {thresholds: [1], xp: [1]}
achievements:
  - {id: a, category: cooking, action: x, ladder: l, tiers: [{threshold: 1, xp: 1}]}
`,
		"decreasing xp": `
version: 1
achievements:
  - {id: a, category: cooking, action: x, tiers: [{threshold: 1, xp: 5}, {threshold: 2, xp: 4}]}
`,
		"unknown field": `
version: 1
achievements:
  - {id: a, category: cooking, action: x, points: 3}
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 7
achievements:
  - id: first_bite
    category: cooking
    action: recipes_cooked
    tiers: [{threshold: 1, xp: 5}, {threshold: 3, xp: 9}]
    copy:
      en: {name: First Bite, description: "Cook {threshold} times"}
`), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Version())
	d, ok := c.Get("first_bite")
	require.True(t, ok)
	assert.Equal(t, "First Bite", d.Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCopyLookup(t *testing.T) {
	c := Default()
	d, _ := c.Get("recipe_creator")
	text := c.Copy()

	assert.Equal(t, "Receptalkotó", text.Name(d.ID, "hu"))
	assert.Equal(t, "Recipe Creator", text.Name(d.ID, "de"), "missing language falls back to english")
	assert.Equal(t, "unknown", text.Name("unknown", "en"))

	assert.Equal(t, "Create 10 recipes", text.Description(d, core.TierCopper, "en"))
	assert.Equal(t, "Hozz létre 5 receptet", text.Description(d, core.TierStone, "hu"))
	assert.Equal(t, "Create 2500 recipes. A cookbook of your own!", text.Description(d, core.TierLegendary, "en"))
}

func TestTierLabel(t *testing.T) {
	assert.Equal(t, "🥇 Gold", TierLabel(core.TierGold))
}
