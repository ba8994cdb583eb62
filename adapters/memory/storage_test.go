package memory

import (
	"context"
	"testing"

	"github.com/tamaskk/foodybackend-sub000/adapters/storetest"
	"github.com/tamaskk/foodybackend-sub000/core"
)

func TestMemoryStoreBehaves(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return New() })
}

func TestMemoryStore(t *testing.T) {
	s := New()
	total, err := s.IncrementProgress(context.Background(), core.UserID("u"), "recipes_saved", 5)
	if err != nil || total != 5 {
		t.Fatalf("got %v %v", total, err)
	}
	if err := s.CreateUserAchievement(context.Background(), core.UserAchievement{UserID: "u", AchievementID: "recipe_collector", Tier: core.TierStone}); err != nil {
		t.Fatal(err)
	}
	st, err := s.AchievementStanding(context.Background(), "u", "recipe_collector")
	if err != nil {
		t.Fatal(err)
	}
	if st.Rank != 1 || st.Achievements != 2 {
		t.Fatalf("unexpected standing %+v", st)
	}
}
