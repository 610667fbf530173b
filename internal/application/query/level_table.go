package query

import (
	"fmt"

	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
)

// DefaultLevelTableSize - сколько уровней показывать по умолчанию.
const DefaultLevelTableSize = 20

// LevelTableQuery - параметры таблицы порогов.
type LevelTableQuery struct {
	MaxLevel int
}

// LevelTable возвращает пороги XP уровней 1..MaxLevel по кривой.
func LevelTable(curve *progression.Curve, q LevelTableQuery) ([]progression.LevelThreshold, error) {
	if curve == nil {
		curve = progression.DefaultCurve
	}
	if q.MaxLevel == 0 {
		q.MaxLevel = min(DefaultLevelTableSize, curve.LevelCap())
	}
	table, err := curve.LevelTable(q.MaxLevel)
	if err != nil {
		return nil, fmt.Errorf("level_table: %w", err)
	}
	return table, nil
}
