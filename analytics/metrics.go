package analytics

import (
	"context"

	"github.com/tamaskk/foodybackend-sub000/core"
)

// BridgeHook bridges an event source to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(e)
	}
}

// Subscriber is an event source such as engine.EventBus.
type Subscriber interface {
	Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func()
}

var trackedEvents = []core.EventType{
	core.EventActionRecorded,
	core.EventProgressUpdated,
	core.EventAchievementUnlocked,
	core.EventAchievementUpgraded,
	core.EventLevelUp,
}

// Attach feeds every domain event from sub into h. The returned func
// detaches it.
func Attach(sub Subscriber, h Hook) func() {
	unsubs := make([]func(), 0, len(trackedEvents))
	for _, typ := range trackedEvents {
		unsubs = append(unsubs, sub.Subscribe(typ, func(_ context.Context, e core.Event) { h.OnEvent(e) }))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
