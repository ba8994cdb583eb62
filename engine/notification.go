package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tamaskk/foodybackend-sub000/catalog"
	"github.com/tamaskk/foodybackend-sub000/core"
)

type notificationText struct {
	unlockedTitle   string
	upgradedTitle   string
	unlockedMessage string // name, tier label
	upgradedMessage string // name, tier label
}

var notificationTexts = map[string]notificationText{
	"en": {
		unlockedTitle:   "New achievement unlocked!",
		upgradedTitle:   "Achievement upgraded!",
		unlockedMessage: "You unlocked %s %s",
		upgradedMessage: "%s reached %s",
	},
	"hu": {
		unlockedTitle:   "Új kitüntetést szereztél!",
		upgradedTitle:   "Kitüntetésed szintet lépett!",
		unlockedMessage: "Megszerezted: %s %s",
		upgradedMessage: "%s elérte: %s",
	},
}

func (s *ProgressionService) buildNotification(user core.UserID, def core.AchievementDefinition, u core.Unlock) core.Notification {
	text, ok := notificationTexts[s.lang]
	if !ok {
		text = notificationTexts[catalog.DefaultLanguage]
	}
	copyText := s.catalog.Copy()
	name := copyText.Name(def.ID, s.lang)
	label := catalog.TierLabel(u.Tier)

	n := core.Notification{
		ID:     uuid.Must(uuid.NewV7()).String(),
		UserID: user,
		Kind:   core.NotificationUnlocked,
		Title:  text.unlockedTitle,
		Payload: core.NotificationPayload{
			AchievementID: def.ID,
			Tier:          u.Tier,
			Description:   copyText.Description(def, u.Tier, s.lang),
			IsUpgrade:     u.IsUpgrade,
		},
		IsUpgrade: u.IsUpgrade,
		CreatedAt: s.now(),
	}
	if u.IsUpgrade {
		n.Kind = core.NotificationUpgraded
		n.Title = text.upgradedTitle
		n.Message = fmt.Sprintf(text.upgradedMessage, name, label)
	} else {
		n.Message = fmt.Sprintf(text.unlockedMessage, name, label)
	}
	return n
}
