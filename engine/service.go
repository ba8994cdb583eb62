package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tamaskk/foodybackend-sub000/catalog"
	"github.com/tamaskk/foodybackend-sub000/core"
)

// ErrNoPrimaryCounter is returned by Resync when no PrimaryCounter is set.
var ErrNoPrimaryCounter = errors.New("resync requires a primary counter")

// ProgressionService wires storage, catalog, level curve and event bus into
// the progression API used by feature code.
type ProgressionService struct {
	store   Storage
	catalog *catalog.Catalog
	bus     *EventBus
	curve   core.LevelCurve
	sink    NotificationSink
	counter PrimaryCounter
	logger  *slog.Logger
	lang    string
	now     func() time.Time
	unsub   func()
}

// ServiceOption customizes a ProgressionService.
type ServiceOption func(*ProgressionService)

func WithCurve(c core.LevelCurve) ServiceOption {
	return func(s *ProgressionService) { s.curve = c }
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *ProgressionService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLanguage selects the notification copy language.
func WithLanguage(lang string) ServiceOption {
	return func(s *ProgressionService) {
		if lang != "" {
			s.lang = lang
		}
	}
}

// WithNotificationSinks adds sinks next to the store's own notification table.
func WithNotificationSinks(sinks ...NotificationSink) ServiceOption {
	return func(s *ProgressionService) {
		s.sink = append(MultiSink{s.store}, sinks...)
	}
}

func WithPrimaryCounter(c PrimaryCounter) ServiceOption {
	return func(s *ProgressionService) { s.counter = c }
}

// WithClock overrides time.Now for unlock timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *ProgressionService) { s.now = now }
}

func NewProgressionService(store Storage, cat *catalog.Catalog, bus *EventBus, opts ...ServiceOption) *ProgressionService {
	if store == nil || cat == nil || bus == nil {
		panic("NewProgressionService requires non-nil storage, catalog, and bus")
	}
	s := &ProgressionService{
		store:   store,
		catalog: cat,
		bus:     bus,
		curve:   core.DefaultCurve(),
		sink:    store,
		logger:  slog.Default(),
		lang:    catalog.DefaultLanguage,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	s.unsub = bus.Subscribe(core.EventActionRecorded, s.handleActionRecorded)
	return s
}

// Subscribe convenience method.
func (s *ProgressionService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

func (s *ProgressionService) Catalog() *catalog.Catalog { return s.catalog }

func (s *ProgressionService) Curve() core.LevelCurve { return s.curve }

// Close waits for queued actions and stops the bus workers.
func (s *ProgressionService) Close() {
	s.bus.Close()
	s.unsub()
}

// RecordAction queues an action for asynchronous tracking. It never blocks
// on storage and never reports failure; invalid input is logged and dropped.
func (s *ProgressionService) RecordAction(ctx context.Context, user core.UserID, key core.ActionKey, amount int64) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil || amount <= 0 {
		s.logger.Warn("dropping invalid action",
			slog.String("user_id", string(user)),
			slog.String("action", string(key)),
			slog.Int64("amount", amount))
		return
	}
	s.bus.Publish(ctx, core.NewActionRecorded(normalized, key, amount))
}

func (s *ProgressionService) handleActionRecorded(ctx context.Context, ev core.Event) {
	if _, err := s.TrackAndCheck(ctx, ev.UserID, ev.Action, ev.Amount); err != nil {
		s.logger.Warn("queued action rejected",
			slog.String("user_id", string(ev.UserID)),
			slog.String("action", string(ev.Action)),
			slog.String("error", err.Error()))
	}
}

// TrackAndCheck increments the user's counter for key and reconciles every
// achievement fed by it. Unknown or malformed keys yield no unlocks; ledger
// failures are logged and yield no unlocks. Only invalid input is an error.
func (s *ProgressionService) TrackAndCheck(ctx context.Context, user core.UserID, key core.ActionKey, amount int64) ([]core.Unlock, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, core.ErrInvalidAmount
	}
	if core.ValidateActionKey(key) != nil {
		return nil, nil
	}
	value, err := s.store.IncrementProgress(ctx, normalized, key, amount)
	if err != nil {
		s.logger.Error("progress increment failed",
			slog.String("user_id", string(normalized)),
			slog.String("action", string(key)),
			slog.String("error", err.Error()))
		return nil, nil
	}
	s.bus.Publish(ctx, core.NewProgressUpdated(normalized, key, value))
	return s.checkAll(ctx, normalized, s.catalog.ForAction(key), map[core.ActionKey]int64{key: value}), nil
}

// SetProgress overwrites a counter and reconciles the achievements it feeds.
// Storage errors are returned since this is an administrative call.
func (s *ProgressionService) SetProgress(ctx context.Context, user core.UserID, key core.ActionKey, value int64) ([]core.Unlock, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	if value < 0 {
		return nil, core.ErrInvalidAmount
	}
	if err := core.ValidateActionKey(key); err != nil {
		return nil, err
	}
	if err := s.store.SetProgress(ctx, normalized, key, value); err != nil {
		return nil, fmt.Errorf("set progress %s/%s: %w", normalized, key, err)
	}
	s.bus.Publish(ctx, core.NewProgressUpdated(normalized, key, value))
	return s.checkAll(ctx, normalized, s.catalog.ForAction(key), map[core.ActionKey]int64{key: value}), nil
}

// CheckAchievements reconciles every catalog achievement against the stored
// counters. Running it twice awards nothing the second time.
func (s *ProgressionService) CheckAchievements(ctx context.Context, user core.UserID) ([]core.Unlock, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	counters, err := s.store.GetProgress(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("load progress %s: %w", normalized, err)
	}
	return s.checkAll(ctx, normalized, s.catalog.All(), counters), nil
}

// Resync recomputes counters from primary records, overwrites them and
// reconciles achievements. Counters absent from the primary records are
// left untouched.
func (s *ProgressionService) Resync(ctx context.Context, user core.UserID) ([]core.Unlock, error) {
	if s.counter == nil {
		return nil, ErrNoPrimaryCounter
	}
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	counts, err := s.counter.CountActions(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("count primary records for %s: %w", normalized, err)
	}
	for key, value := range counts {
		if value < 0 || core.ValidateActionKey(key) != nil {
			s.logger.Warn("skipping invalid primary count",
				slog.String("user_id", string(normalized)),
				slog.String("action", string(key)),
				slog.Int64("value", value))
			continue
		}
		if err := s.store.SetProgress(ctx, normalized, key, value); err != nil {
			return nil, fmt.Errorf("resync %s/%s: %w", normalized, key, err)
		}
	}
	return s.CheckAchievements(ctx, normalized)
}

// RecalculateLevel recomputes the level from experience and persists it
// when the cached value drifted.
func (s *ProgressionService) RecalculateLevel(ctx context.Context, user core.UserID) (int, bool, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return 0, false, err
	}
	p, err := s.store.GetProfile(ctx, normalized)
	if err != nil {
		return 0, false, err
	}
	level := s.curve.LevelForXP(p.Experience)
	if level == p.Level {
		return level, false, nil
	}
	if err := s.store.SetLevel(ctx, normalized, level); err != nil {
		return 0, false, fmt.Errorf("set level %s: %w", normalized, err)
	}
	s.logger.Info("level recalculated",
		slog.String("user_id", string(normalized)),
		slog.Int("from", p.Level),
		slog.Int("to", level))
	return level, true, nil
}

// EnsureProfile registers a user. Repeated calls only refresh display name
// and country.
func (s *ProgressionService) EnsureProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	normalized, err := core.NormalizeUserID(p.UserID)
	if err != nil {
		return core.Profile{}, err
	}
	p.UserID = normalized
	p.Country = strings.ToUpper(strings.TrimSpace(p.Country))
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	return s.store.EnsureProfile(ctx, p)
}

// Progress returns the user's profile, level breakdown, counters and
// unlock records. Users never seen before report level 1 and no progress.
func (s *ProgressionService) Progress(ctx context.Context, user core.UserID) (core.ProgressReport, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.ProgressReport{}, err
	}
	p, err := s.store.GetProfile(ctx, normalized)
	switch {
	case errors.Is(err, core.ErrNotFound):
		p = core.Profile{UserID: normalized, Level: 1}
	case err != nil:
		return core.ProgressReport{}, err
	}
	counters, err := s.store.GetProgress(ctx, normalized)
	if err != nil {
		return core.ProgressReport{}, err
	}
	achievements, err := s.store.ListUserAchievements(ctx, normalized)
	if err != nil {
		return core.ProgressReport{}, err
	}
	return core.ProgressReport{
		Profile:      p,
		XP:           s.curve.Progress(p.Experience),
		Counters:     counters,
		Achievements: achievements,
	}, nil
}

// Notifications lists the user's most recent notification records.
func (s *ProgressionService) Notifications(ctx context.Context, user core.UserID, limit int) ([]core.Notification, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	return s.store.Notifications(ctx, normalized, limit)
}

func (s *ProgressionService) checkAll(ctx context.Context, user core.UserID, defs []core.AchievementDefinition, counters map[core.ActionKey]int64) []core.Unlock {
	var out []core.Unlock
	for _, def := range defs {
		tier, ok := core.ResolveTier(def.Tiers, counters[def.Action])
		if !ok {
			continue
		}
		if u, ok := s.reconcile(ctx, user, def, tier); ok {
			out = append(out, u)
		}
	}
	return out
}
