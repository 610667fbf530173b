package progression

import (
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
)

const (
	// XPPerMessage - награда за завершённый ход в чате.
	XPPerMessage = 10

	// XPPerChallenge - награда за каждый верный ответ в квизе.
	XPPerChallenge = 50

	// MaxQuizCorrect - верхняя граница верных ответов за один квиз.
	MaxQuizCorrect = 1000

	// MaxManualAward - верхняя граница ручного начисления.
	MaxManualAward = 1_000_000
)

// Source - источник начисления XP.
type Source string

const (
	SourceMessage Source = "message"
	SourceQuiz    Source = "quiz"
	SourceManual  Source = "manual"
)

// IsValid проверяет, что источник известен.
func (s Source) IsValid() bool {
	switch s {
	case SourceMessage, SourceQuiz, SourceManual:
		return true
	}
	return false
}

// AwardForMessage возвращает XP за сообщение.
func AwardForMessage() int {
	return XPPerMessage
}

// AwardForQuiz возвращает XP за квиз: 50 за каждый верный ответ.
func AwardForQuiz(correct int) (int, error) {
	if correct < 0 {
		return 0, shared.ErrNegativeCorrect
	}
	if correct > MaxQuizCorrect {
		return 0, shared.ErrTooManyCorrect
	}
	return correct * XPPerChallenge, nil
}

// Award - запрос на начисление.
type Award struct {
	Source  Source
	Correct int // для SourceQuiz
	Amount  int // для SourceManual
}

// XP вычисляет размер награды по источнику.
func (a Award) XP() (int, error) {
	switch a.Source {
	case SourceMessage:
		return AwardForMessage(), nil
	case SourceQuiz:
		return AwardForQuiz(a.Correct)
	case SourceManual:
		if a.Amount < 0 {
			return 0, shared.ErrNegativeXPGain
		}
		if a.Amount > MaxManualAward {
			return 0, shared.ErrXPGainTooLarge
		}
		return a.Amount, nil
	}
	return 0, shared.ErrUnknownXPSource
}
