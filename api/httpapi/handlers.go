package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tamaskk/foodybackend-sub000/analytics"
	"github.com/tamaskk/foodybackend-sub000/catalog"
	"github.com/tamaskk/foodybackend-sub000/core"
	"github.com/tamaskk/foodybackend-sub000/engine"
	"github.com/tamaskk/foodybackend-sub000/leaderboard"
)

// toAPIError maps engine and store errors onto HTTP statuses.
func toAPIError(err error) error {
	switch {
	case errors.Is(err, core.ErrEmptyUserID),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrUnknownAchievement):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, core.ErrNotFound):
		return huma.Error404NotFound("user not found")
	case errors.Is(err, engine.ErrNoPrimaryCounter):
		return huma.Error501NotImplemented(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout("query timed out")
	}
	return huma.Error500InternalServerError("internal error", err)
}

type UserPath struct {
	ID string `path:"id" doc:"User id" minLength:"1"`
}

type RegisterUserInput struct {
	Body struct {
		UserID      string `json:"user_id" doc:"User id" minLength:"1"`
		DisplayName string `json:"display_name,omitempty" doc:"Name shown on leaderboards"`
		Country     string `json:"country,omitempty" doc:"Country code used by country leaderboards"`
	}
}

type ProfileOutput struct {
	Body core.Profile
}

func (s *server) registerUser(ctx context.Context, in *RegisterUserInput) (*ProfileOutput, error) {
	p, err := s.eng.EnsureProfile(ctx, core.Profile{
		UserID:      core.UserID(in.Body.UserID),
		DisplayName: in.Body.DisplayName,
		Country:     in.Body.Country,
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	return &ProfileOutput{Body: p}, nil
}

type ProgressOutput struct {
	Body core.ProgressReport
}

func (s *server) progress(ctx context.Context, in *UserPath) (*ProgressOutput, error) {
	report, err := s.eng.Progress(ctx, core.UserID(in.ID))
	if err != nil {
		return nil, toAPIError(err)
	}
	return &ProgressOutput{Body: report}, nil
}

type NotificationsInput struct {
	UserPath
	Limit int `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum records, newest first"`
}

type NotificationsOutput struct {
	Body struct {
		Notifications []core.Notification `json:"notifications"`
	}
}

func (s *server) notifications(ctx context.Context, in *NotificationsInput) (*NotificationsOutput, error) {
	list, err := s.eng.Notifications(ctx, core.UserID(in.ID), in.Limit)
	if err != nil {
		return nil, toAPIError(err)
	}
	out := &NotificationsOutput{}
	out.Body.Notifications = list
	if out.Body.Notifications == nil {
		out.Body.Notifications = []core.Notification{}
	}
	return out, nil
}

type RecordActionInput struct {
	UserPath
	Body struct {
		Action string `json:"action" doc:"Action key, e.g. recipes_created" minLength:"1"`
		Amount *int64 `json:"amount,omitempty" doc:"Increment, defaults to 1"`
		Async  bool   `json:"async,omitempty" doc:"Queue the action and return 202 without unlocks"`
	}
}

type UnlocksOutput struct {
	Status int
	Body   struct {
		Queued  bool          `json:"queued"`
		Unlocks []core.Unlock `json:"unlocks"`
	}
}

func unlocksOutput(unlocks []core.Unlock) *UnlocksOutput {
	out := &UnlocksOutput{Status: http.StatusOK}
	out.Body.Unlocks = unlocks
	if out.Body.Unlocks == nil {
		out.Body.Unlocks = []core.Unlock{}
	}
	return out
}

func (s *server) recordAction(ctx context.Context, in *RecordActionInput) (*UnlocksOutput, error) {
	amount := int64(1)
	if in.Body.Amount != nil {
		amount = *in.Body.Amount
	}
	key := core.ActionKey(in.Body.Action)
	if err := core.ValidateActionKey(key); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if in.Body.Async {
		if _, err := core.NormalizeUserID(core.UserID(in.ID)); err != nil {
			return nil, toAPIError(err)
		}
		if amount <= 0 {
			return nil, toAPIError(core.ErrInvalidAmount)
		}
		s.eng.RecordAction(ctx, core.UserID(in.ID), key, amount)
		out := unlocksOutput(nil)
		out.Status = http.StatusAccepted
		out.Body.Queued = true
		return out, nil
	}
	unlocks, err := s.eng.TrackAndCheck(ctx, core.UserID(in.ID), key, amount)
	if err != nil {
		return nil, toAPIError(err)
	}
	return unlocksOutput(unlocks), nil
}

type SetProgressInput struct {
	UserPath
	Action string `path:"action" doc:"Action key"`
	Body   struct {
		Value int64 `json:"value" doc:"Absolute counter value" minimum:"0"`
	}
}

func (s *server) setProgress(ctx context.Context, in *SetProgressInput) (*UnlocksOutput, error) {
	key := core.ActionKey(in.Action)
	if err := core.ValidateActionKey(key); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	unlocks, err := s.eng.SetProgress(ctx, core.UserID(in.ID), key, in.Body.Value)
	if err != nil {
		return nil, toAPIError(err)
	}
	return unlocksOutput(unlocks), nil
}

func (s *server) resync(ctx context.Context, in *UserPath) (*UnlocksOutput, error) {
	unlocks, err := s.eng.Resync(ctx, core.UserID(in.ID))
	if err != nil {
		return nil, toAPIError(err)
	}
	return unlocksOutput(unlocks), nil
}

type LevelOutput struct {
	Body struct {
		Level   int  `json:"level"`
		Changed bool `json:"changed"`
	}
}

func (s *server) recalculateLevel(ctx context.Context, in *UserPath) (*LevelOutput, error) {
	level, changed, err := s.eng.RecalculateLevel(ctx, core.UserID(in.ID))
	if err != nil {
		return nil, toAPIError(err)
	}
	out := &LevelOutput{}
	out.Body.Level = level
	out.Body.Changed = changed
	return out, nil
}

type BoardOutput struct {
	Body leaderboard.Board
}

type LevelBoardInput struct {
	Viewer string `query:"viewer" doc:"User whose own rank is appended"`
}

func (s *server) levelBoard(ctx context.Context, in *LevelBoardInput) (*BoardOutput, error) {
	b, err := s.eng.Ranker.GlobalLevel(ctx, core.UserID(in.Viewer))
	if err != nil {
		return nil, toAPIError(err)
	}
	return &BoardOutput{Body: b}, nil
}

type CountryBoardInput struct {
	Viewer  string `query:"viewer" doc:"User whose own rank is appended"`
	Country string `query:"country" doc:"Country code; defaults to the viewer's country"`
}

func (s *server) countryBoard(ctx context.Context, in *CountryBoardInput) (*BoardOutput, error) {
	b, err := s.eng.Ranker.CountryLevel(ctx, core.UserID(in.Viewer), normalizeCountry(in.Country))
	if err != nil {
		return nil, toAPIError(err)
	}
	return &BoardOutput{Body: b}, nil
}

func normalizeCountry(c string) string { return strings.ToUpper(strings.TrimSpace(c)) }

type AchievementBoardInput struct {
	Viewer      string `query:"viewer" doc:"User whose own rank is appended"`
	Achievement string `query:"achievement" doc:"Rank by tier of one achievement instead of unlock count"`
}

func (s *server) achievementBoard(ctx context.Context, in *AchievementBoardInput) (*BoardOutput, error) {
	id := core.AchievementID(in.Achievement)
	if id != "" {
		if _, ok := s.eng.Catalog().Get(id); !ok {
			return nil, toAPIError(core.ErrUnknownAchievement)
		}
	}
	b, err := s.eng.Ranker.AchievementCount(ctx, core.UserID(in.Viewer), id)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &BoardOutput{Body: b}, nil
}

type CatalogInput struct {
	Lang string `query:"lang" doc:"Language for names and descriptions" default:"en"`
}

type CatalogAchievement struct {
	ID          core.AchievementID `json:"id"`
	Category    core.Category      `json:"category"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Action      core.ActionKey     `json:"action"`
	Tiers       []CatalogTier      `json:"tiers"`
}

type CatalogTier struct {
	core.Tier
	Label       string `json:"label"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

type CatalogOutput struct {
	Body struct {
		Version      int                  `json:"version"`
		Achievements []CatalogAchievement `json:"achievements"`
	}
}

func (s *server) catalog(_ context.Context, in *CatalogInput) (*CatalogOutput, error) {
	cat := s.eng.Catalog()
	text := cat.Copy()
	out := &CatalogOutput{}
	out.Body.Version = cat.Version()
	for _, def := range cat.All() {
		a := CatalogAchievement{
			ID:          def.ID,
			Category:    def.Category,
			Name:        text.Name(def.ID, in.Lang),
			Description: def.Description,
			Action:      def.Action,
		}
		for _, t := range def.Tiers {
			a.Tiers = append(a.Tiers, CatalogTier{
				Tier:        t,
				Label:       catalog.TierLabel(t.Name),
				Icon:        t.Name.Icon(),
				Description: text.Description(def, t.Name, in.Lang),
			})
		}
		out.Body.Achievements = append(out.Body.Achievements, a)
	}
	return out, nil
}

type StatsOutput struct {
	Body analytics.Stats
}

func (s *server) statsSnapshot(_ context.Context, _ *struct{}) (*StatsOutput, error) {
	if s.stats == nil {
		return nil, huma.Error404NotFound("analytics disabled")
	}
	limit := s.top
	if limit <= 0 {
		limit = 10
	}
	return &StatsOutput{Body: s.stats.Snapshot(time.Now(), limit)}, nil
}
