// Package eventhandler содержит обработчики доменных событий.
// Обработчики реагируют на изменения прогрессии и запускают побочные
// эффекты: логирование вех и синхронизацию рейтинга.
package eventhandler

import (
	"fmt"

	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
)

// Register подписывает обработчики на шину.
func Register(bus shared.EventSubscriber, levelUp *OnLevelUpHandler, streak *OnStreakHandler, profile *OnProfileCreatedHandler) error {
	subs := []struct {
		t shared.EventType
		h shared.EventHandler
	}{
		{shared.EventLevelUp, levelUp.Handle},
		{shared.EventDailyStreakUpdated, streak.Handle},
		{shared.EventDailyStreakBroken, streak.Handle},
		{shared.EventProfileCreated, profile.Handle},
	}
	for _, s := range subs {
		if err := bus.Subscribe(s.t, s.h); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.t, err)
		}
	}
	return nil
}

// payloadInt reads an integer payload field. Events decoded from another
// instance carry JSON numbers as float64.
func payloadInt(p map[string]interface{}, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func payloadString(p map[string]interface{}, key string) string {
	s, _ := p[key].(string)
	return s
}
