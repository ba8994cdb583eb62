// Package leaderboard answers the ranking queries: global level, level
// within one country and achievement count, optionally narrowed to a
// single achievement.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tamaskk/foodybackend-sub000/core"
)

const (
	DefaultSize         = 50
	DefaultQueryTimeout = 5 * time.Second
)

// Entry is one position in an ordered set: Primary desc, Secondary desc,
// then user id asc.
type Entry struct {
	User      core.UserID
	Primary   int64
	Secondary int64
}

// OrderedSet abstracts the in-memory ranking index.
type OrderedSet interface {
	Update(user core.UserID, primary, secondary int64)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Rank(user core.UserID) (int64, bool)
	CountBefore(e Entry) int64
	Len() int64
}

// Source is implemented by store adapters. Ranks are exact: one plus the
// number of users strictly preceding under the board's total order.
//
// Level boards order by (level desc, experience desc, user id asc) and
// contain every user with a profile. An empty country means global.
// LevelStanding returns core.ErrNotFound for users without a profile or
// outside the country.
//
// Achievement boards order by (count desc, user id asc). Without a filter
// count is the number of unlock records; with one it is the tier position
// of that achievement's record. Users with a zero count are not ranked but
// AchievementStanding still answers for them with rank 1 + ranked users.
type Source interface {
	TopByLevel(ctx context.Context, country string, limit int) ([]core.Standing, error)
	LevelStanding(ctx context.Context, user core.UserID, country string) (core.Standing, error)
	Countries(ctx context.Context) ([]string, error)
	TopByAchievements(ctx context.Context, achievement core.AchievementID, limit int) ([]core.Standing, error)
	AchievementStanding(ctx context.Context, user core.UserID, achievement core.AchievementID) (core.Standing, error)
}

// Board is a ranking page plus the viewer's own row.
type Board struct {
	Kind        string             `json:"kind"`
	Country     string             `json:"country,omitempty"`
	Achievement core.AchievementID `json:"achievement,omitempty"`
	Entries     []core.Standing    `json:"entries"`
	Viewer      *core.Standing     `json:"viewer,omitempty"`
	Countries   []string           `json:"countries,omitempty"`
}

const (
	KindLevel        = "level"
	KindCountryLevel = "country_level"
	KindAchievements = "achievements"
)

// Ranker runs leaderboard queries against a Source with a page size and a
// per-call timeout.
type Ranker struct {
	src     Source
	size    int
	timeout time.Duration
}

type Option func(*Ranker)

func WithSize(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.size = n
		}
	}
}

func WithQueryTimeout(d time.Duration) Option {
	return func(r *Ranker) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRanker(src Source, opts ...Option) *Ranker {
	r := &Ranker{src: src, size: DefaultSize, timeout: DefaultQueryTimeout}
	for _, o := range opts {
		o(r)
	}
	return r
}

// GlobalLevel returns the top users by level. viewer may be empty.
func (r *Ranker) GlobalLevel(ctx context.Context, viewer core.UserID) (Board, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	entries, err := r.src.TopByLevel(ctx, "", r.size)
	if err != nil {
		return Board{}, fmt.Errorf("global level leaderboard: %w", err)
	}
	b := Board{Kind: KindLevel, Entries: nonNil(entries)}
	if viewer != "" {
		b.Viewer, err = r.viewer(entries, viewer, func() (core.Standing, error) {
			return r.src.LevelStanding(ctx, viewer, "")
		})
		if err != nil {
			return Board{}, fmt.Errorf("global level standing: %w", err)
		}
	}
	return b, nil
}

// CountryLevel returns the top users of one country. An empty country
// selects the viewer's own; the viewer row is only filled in when the board
// is the viewer's country.
func (r *Ranker) CountryLevel(ctx context.Context, viewer core.UserID, country string) (Board, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var own string
	if viewer != "" {
		st, err := r.src.LevelStanding(ctx, viewer, "")
		switch {
		case err == nil:
			own = st.Country
		case !errors.Is(err, core.ErrNotFound):
			return Board{}, fmt.Errorf("country level standing: %w", err)
		}
	}
	if country == "" {
		country = own
	}

	countries, err := r.src.Countries(ctx)
	if err != nil {
		return Board{}, fmt.Errorf("leaderboard countries: %w", err)
	}
	b := Board{Kind: KindCountryLevel, Country: country, Entries: []core.Standing{}, Countries: countries}
	if country == "" {
		return b, nil
	}
	entries, err := r.src.TopByLevel(ctx, country, r.size)
	if err != nil {
		return Board{}, fmt.Errorf("country level leaderboard: %w", err)
	}
	b.Entries = nonNil(entries)
	if viewer != "" && own == country {
		b.Viewer, err = r.viewer(entries, viewer, func() (core.Standing, error) {
			return r.src.LevelStanding(ctx, viewer, country)
		})
		if err != nil {
			return Board{}, fmt.Errorf("country level standing: %w", err)
		}
	}
	return b, nil
}

// AchievementCount ranks users by unlock count, or by tier reached when
// achievement is set.
func (r *Ranker) AchievementCount(ctx context.Context, viewer core.UserID, achievement core.AchievementID) (Board, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	entries, err := r.src.TopByAchievements(ctx, achievement, r.size)
	if err != nil {
		return Board{}, fmt.Errorf("achievement leaderboard: %w", err)
	}
	b := Board{Kind: KindAchievements, Achievement: achievement, Entries: nonNil(entries)}
	if viewer != "" {
		b.Viewer, err = r.viewer(entries, viewer, func() (core.Standing, error) {
			return r.src.AchievementStanding(ctx, viewer, achievement)
		})
		if err != nil {
			return Board{}, fmt.Errorf("achievement standing: %w", err)
		}
	}
	return b, nil
}

// viewer picks the viewer's row from the page or asks the source for it.
// Viewers unknown to the source yield nil.
func (r *Ranker) viewer(entries []core.Standing, user core.UserID, lookup func() (core.Standing, error)) (*core.Standing, error) {
	for i := range entries {
		if entries[i].UserID == user {
			st := entries[i]
			return &st, nil
		}
	}
	st, err := lookup()
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func nonNil(s []core.Standing) []core.Standing {
	if s == nil {
		return []core.Standing{}
	}
	return s
}
