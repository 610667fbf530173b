// Package progression содержит доменную модель прогрессии пользователя:
// опыт (XP), уровни и ежедневную серию активности (streak).
//
// Пакет определяет:
//
//   - Кривую уровней (Curve): соответствие XP ↔ уровень
//   - Запись прогрессии (Record): xp, level, streak_days, last_active_at
//   - Операции: ApplyXPGain, ApplyStreakUpdate
//   - Источники наград (Source): сообщение в чате, квиз, ручное начисление
//   - Интерфейс репозитория (Repository)
//
// # Кривая уровней
//
// Чтобы перейти с уровня 1 на уровень 2, нужно 100 XP. Каждый следующий
// переход стоит на 10% больше предыдущего. Каждое слагаемое округляется
// вниз отдельно:
//
//	XPRequiredForLevel(2) == 100
//	XPRequiredForLevel(3) == 210
//	XPRequiredForLevel(4) == 331
//
// Уровень всегда вычисляется из XP и никогда не меняется независимо:
//
//	level := LevelFromXP(xp)
//
// # Серия активности
//
// Серия увеличивается при первой активности нового календарного дня,
// если с прошлой активности прошло меньше 24 часов, и сбрасывается до 1,
// если прошло 48 часов и больше. Во всех остальных случаях серия
// не меняется. Время последней активности обновляется всегда.
//
//	res := ApplyStreakUpdate(rec, time.Now(), loc)
//	if res.Transition == StreakReset { ... }
//
// # Чистота
//
// Все функции пакета детерминированы и не выполняют I/O. Сохранение
// результата - ответственность вызывающего кода через Repository.
package progression
