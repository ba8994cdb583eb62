package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tamaskk/foodybackend-sub000/core"
	"github.com/tamaskk/foodybackend-sub000/leaderboard"
	sdk "github.com/tamaskk/foodybackend-sub000/sdk/go"
)

func newRegisterCommand(opts *RootOptions) *cobra.Command {
	var name, country string
	cmd := &cobra.Command{
		Use:   "register <user>",
		Short: "Create or refresh a user profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				p, err := c.RegisterUser(ctx, args[0], name, country)
				if err != nil {
					return err
				}
				return render(cmd, opts, p, func(w *textWriter) {
					w.row("user", string(p.UserID))
					w.row("display name", p.DisplayName)
					w.row("country", p.Country)
					w.row("level", strconv.Itoa(p.Level))
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&country, "country", "", "ISO country code")
	return cmd
}

func newProgressCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <user>",
		Short: "Show level, counters and achievements of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				r, err := c.Progress(ctx, args[0])
				if err != nil {
					return err
				}
				return render(cmd, opts, r, func(w *textWriter) {
					w.row("user", string(r.Profile.UserID))
					w.row("level", fmt.Sprintf("%d (%d/%d xp into level)", r.XP.Level, r.XP.XPIntoLevel, r.XP.XPForNextLevel))
					w.row("experience", strconv.FormatInt(r.Profile.Experience, 10))
					w.blank()
					w.header("ACTION", "COUNT")
					for _, k := range sortedKeys(r.Counters) {
						w.row(string(k), strconv.FormatInt(r.Counters[k], 10))
					}
					w.blank()
					w.header("ACHIEVEMENT", "TIER", "UNLOCKED")
					for _, a := range r.Achievements {
						w.row(string(a.AchievementID), string(a.Tier), a.UnlockedAt.Format("2006-01-02 15:04"))
					}
				})
			})
		},
	}
}

func newNotificationsCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "notifications <user>",
		Short: "List the newest notifications of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				notes, err := c.Notifications(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return render(cmd, opts, notes, func(w *textWriter) {
					w.header("CREATED", "KIND", "TITLE")
					for _, n := range notes {
						w.row(n.CreatedAt.Format("2006-01-02 15:04"), string(n.Kind), n.Title)
					}
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum notifications (server default when 0)")
	return cmd
}

func newRecordCommand(opts *RootOptions) *cobra.Command {
	var (
		amount int64
		async  bool
	)
	cmd := &cobra.Command{
		Use:   "record <user> <action>",
		Short: "Record occurrences of an action",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				if async {
					if err := c.QueueAction(ctx, args[0], args[1], amount); err != nil {
						return err
					}
					return render(cmd, opts, sdk.ActionResult{Queued: true}, func(w *textWriter) {
						w.row("queued", args[1])
					})
				}
				unlocks, err := c.RecordAction(ctx, args[0], args[1], amount)
				if err != nil {
					return err
				}
				return renderUnlocks(cmd, opts, unlocks)
			})
		},
	}
	cmd.Flags().Int64Var(&amount, "amount", 1, "number of occurrences")
	cmd.Flags().BoolVar(&async, "async", false, "queue the action instead of waiting for unlocks")
	return cmd
}

func newSetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <user> <action> <value>",
		Short: "Overwrite one progress counter",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[2], err)
			}
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				unlocks, err := c.SetProgress(ctx, args[0], args[1], value)
				if err != nil {
					return err
				}
				return renderUnlocks(cmd, opts, unlocks)
			})
		},
	}
}

func newResyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resync <user>",
		Short: "Recompute counters from primary records and reconcile achievements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				unlocks, err := c.Resync(ctx, args[0])
				if err != nil {
					return err
				}
				return renderUnlocks(cmd, opts, unlocks)
			})
		},
	}
}

func newRecalcLevelCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc-level <user>",
		Short: "Recompute the cached level from experience",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				res, err := c.RecalculateLevel(ctx, args[0])
				if err != nil {
					return err
				}
				return render(cmd, opts, res, func(w *textWriter) {
					w.row("level", strconv.Itoa(res.Level))
					w.row("changed", strconv.FormatBool(res.Changed))
				})
			})
		},
	}
}

func newLeaderboardCommand(opts *RootOptions) *cobra.Command {
	var viewer, country, achievement string
	cmd := &cobra.Command{
		Use:       "leaderboard <level|country|achievements>",
		Short:     "Show a leaderboard",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"level", "country", "achievements"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				var (
					b   leaderboard.Board
					err error
				)
				switch args[0] {
				case "level":
					b, err = c.LevelLeaderboard(ctx, viewer)
				case "country":
					b, err = c.CountryLeaderboard(ctx, viewer, country)
				default:
					b, err = c.AchievementLeaderboard(ctx, viewer, achievement)
				}
				if err != nil {
					return err
				}
				return render(cmd, opts, b, func(w *textWriter) { writeBoard(w, b) })
			})
		},
	}
	cmd.Flags().StringVar(&viewer, "viewer", "", "user whose standing is shown below the table")
	cmd.Flags().StringVar(&country, "country", "", "country code (defaults to the viewer's)")
	cmd.Flags().StringVar(&achievement, "achievement", "", "rank by tier of one achievement")
	return cmd
}

func writeBoard(w *textWriter, b leaderboard.Board) {
	score := "LEVEL"
	if b.Kind == leaderboard.KindAchievements {
		score = "ACHIEVEMENTS"
		if b.Achievement != "" {
			score = "TIER"
		}
	}
	w.header("RANK", "USER", "COUNTRY", score)
	for _, e := range b.Entries {
		w.row(strconv.FormatInt(e.Rank, 10), standingName(e), e.Country, strconv.FormatInt(scoreOf(b, e), 10))
	}
	if b.Viewer != nil {
		w.blank()
		w.row("you", strconv.FormatInt(b.Viewer.Rank, 10), standingName(*b.Viewer), strconv.FormatInt(scoreOf(b, *b.Viewer), 10))
	}
}

func scoreOf(b leaderboard.Board, s core.Standing) int64 {
	if b.Kind == leaderboard.KindAchievements {
		return s.Achievements
	}
	return int64(s.Level)
}

func standingName(s core.Standing) string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return string(s.UserID)
}

func newCatalogCommand(opts *RootOptions) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List achievement definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				cat, err := c.Catalog(ctx, lang)
				if err != nil {
					return err
				}
				return render(cmd, opts, cat, func(w *textWriter) {
					w.header("ID", "NAME", "ACTION", "TIERS")
					for _, a := range cat.Achievements {
						w.row(string(a.ID), a.Name, string(a.Action), strconv.Itoa(len(a.Tiers)))
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "en", "copy language")
	return cmd
}

func newStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's activity snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				stats, err := c.Stats(ctx)
				if err != nil {
					return err
				}
				return render(cmd, opts, stats, func(w *textWriter) {
					for _, k := range sortedKeys(stats) {
						w.row(k, fmt.Sprint(stats[k]))
					}
				})
			})
		},
	}
}

func newHealthCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the server health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				hs, err := c.Health(ctx)
				if err != nil {
					return err
				}
				if err := render(cmd, opts, hs, func(w *textWriter) {
					w.row("status", hs.Status)
					for _, k := range sortedKeys(hs.Checks) {
						w.row(k, hs.Checks[k])
					}
				}); err != nil {
					return err
				}
				if hs.Status != "healthy" {
					return fmt.Errorf("server is %s", hs.Status)
				}
				return nil
			})
		},
	}
}

func renderUnlocks(cmd *cobra.Command, opts *RootOptions, unlocks []core.Unlock) error {
	return render(cmd, opts, sdk.ActionResult{Unlocks: unlocks}, func(w *textWriter) {
		if len(unlocks) == 0 {
			w.row("no unlocks")
			return
		}
		w.header("ACHIEVEMENT", "TIER", "UPGRADE", "XP")
		for _, u := range unlocks {
			w.row(string(u.AchievementID), u.Tier.Icon()+" "+string(u.Tier), strconv.FormatBool(u.IsUpgrade), strconv.FormatInt(u.XPAwarded, 10))
		}
	})
}
