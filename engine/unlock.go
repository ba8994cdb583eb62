package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tamaskk/foodybackend-sub000/core"
)

// maxReconcileAttempts bounds the re-read loop when concurrent writers keep
// winning the create or compare-and-set race.
const maxReconcileAttempts = 5

// reconcile moves the user's record for def forward to tier. Records are
// created on the first crossing and upgraded in place afterwards; a target
// at or below the stored tier is a no-op. Errors are logged and reported as
// no unlock.
func (s *ProgressionService) reconcile(ctx context.Context, user core.UserID, def core.AchievementDefinition, tier core.Tier) (core.Unlock, bool) {
	log := s.logger.With(
		slog.String("user_id", string(user)),
		slog.String("achievement_id", string(def.ID)),
		slog.String("tier", string(tier.Name)))

	for attempt := 0; attempt < maxReconcileAttempts; attempt++ {
		rec, err := s.store.GetUserAchievement(ctx, user, def.ID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			err = s.store.CreateUserAchievement(ctx, core.UserAchievement{
				UserID:        user,
				AchievementID: def.ID,
				Tier:          tier.Name,
				UnlockedAt:    s.now(),
			})
			if errors.Is(err, core.ErrDuplicate) {
				// lost the first-unlock race; the record exists now
				continue
			}
			if err != nil {
				log.Error("create achievement record failed", slog.String("error", err.Error()))
				return core.Unlock{}, false
			}
			u := core.Unlock{AchievementID: def.ID, Tier: tier.Name, XPAwarded: tier.XP}
			s.finish(ctx, user, def, u)
			return u, true
		case err != nil:
			log.Error("load achievement record failed", slog.String("error", err.Error()))
			return core.Unlock{}, false
		}

		if core.TierPosition(tier.Name) <= core.TierPosition(rec.Tier) {
			return core.Unlock{}, false
		}
		swapped, err := s.store.UpgradeUserAchievement(ctx, user, def.ID, rec.Tier, tier.Name, s.now())
		if err != nil {
			log.Error("upgrade achievement record failed", slog.String("error", err.Error()))
			return core.Unlock{}, false
		}
		if !swapped {
			continue
		}
		u := core.Unlock{
			AchievementID: def.ID,
			Tier:          tier.Name,
			IsUpgrade:     true,
			XPAwarded:     tier.XP - def.XPOf(rec.Tier),
		}
		s.finish(ctx, user, def, u)
		return u, true
	}
	log.Warn("achievement reconcile gave up after repeated races")
	return core.Unlock{}, false
}

// finish awards experience, records the notification and publishes the
// unlock event. The unlock itself is already persisted and stands even if
// any of these steps fail.
func (s *ProgressionService) finish(ctx context.Context, user core.UserID, def core.AchievementDefinition, u core.Unlock) {
	s.awardExperience(ctx, user, u.XPAwarded)
	s.notify(ctx, user, def, u)
	s.bus.Publish(ctx, core.NewUnlockEvent(user, u))
}

func (s *ProgressionService) awardExperience(ctx context.Context, user core.UserID, xp int64) {
	if xp <= 0 {
		return
	}
	p, err := s.store.AddExperience(ctx, user, xp)
	if err != nil {
		s.logger.Error("award experience failed",
			slog.String("user_id", string(user)),
			slog.Int64("xp", xp),
			slog.String("error", err.Error()))
		return
	}
	level := s.curve.LevelForXP(p.Experience)
	raised, err := s.store.RaiseLevel(ctx, user, level)
	if err != nil {
		s.logger.Error("raise level failed",
			slog.String("user_id", string(user)),
			slog.Int("level", level),
			slog.String("error", err.Error()))
		return
	}
	if raised {
		s.bus.Publish(ctx, core.NewLevelUp(user, level, p.Experience))
	}
}

func (s *ProgressionService) notify(ctx context.Context, user core.UserID, def core.AchievementDefinition, u core.Unlock) {
	n := s.buildNotification(user, def, u)
	if err := s.sink.Record(ctx, n); err != nil {
		s.logger.Error("notification write failed",
			slog.String("user_id", string(user)),
			slog.String("achievement_id", string(def.ID)),
			slog.String("notification_id", n.ID),
			slog.String("error", err.Error()))
		return
	}
	if err := s.store.MarkNotified(ctx, user, def.ID); err != nil {
		s.logger.Warn("mark notified failed",
			slog.String("user_id", string(user)),
			slog.String("achievement_id", string(def.ID)),
			slog.String("error", err.Error()))
	}
}
