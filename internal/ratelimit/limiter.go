package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/minesync/internal/clock"
)

// DefaultWindow окно скользящего лимита по умолчанию
const DefaultWindow = time.Minute

// Limiter представляет rate limiter со скользящим окном.
// Для каждого ключа (subject, action) хранится список времен допущенных вызовов
// за последние window.
type Limiter struct {
	windows map[windowKey][]time.Time
	clock   clock.Clock
	logger  *slog.Logger
	limit   int
	window  time.Duration
	mu      sync.Mutex
}

// windowKey ключ окна: пользователь (или IP) и тип операции (или путь)
type windowKey struct {
	subject string
	action  string
}

// New создает новый rate limiter
// limit - максимальное количество вызовов в окне
// window - длина скользящего окна (обычно 1 минута)
func New(limit int, window time.Duration, clk clock.Clock, logger *slog.Logger) *Limiter {
	if clk == nil {
		clk = clock.Real{}
	}
	if window <= 0 {
		window = DefaultWindow
	}

	return &Limiter{
		windows: make(map[windowKey][]time.Time),
		clock:   clk,
		logger:  logger,
		limit:   limit,
		window:  window,
	}
}

// Allow допускает вызов и запоминает его время, если в окне меньше limit записей.
// Иначе отклоняет без изменения состояния окна.
func (l *Limiter) Allow(subject, action string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	key := windowKey{subject: subject, action: action}

	recent := pruneBefore(l.windows[key], now.Add(-l.window))
	if len(recent) >= l.limit {
		l.windows[key] = recent
		return false
	}

	l.windows[key] = append(recent, now)
	return true
}

// Remaining возвращает число вызовов, которые еще будут допущены в текущем окне
func (l *Limiter) Remaining(subject, action string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	recent := pruneBefore(l.windows[windowKey{subject: subject, action: action}], now.Add(-l.window))

	if rest := l.limit - len(recent); rest > 0 {
		return rest
	}
	return 0
}

// ClearOld удаляет окна, в которых нет записей моложе window.
// Возвращает количество удаленных окон.
func (l *Limiter) ClearOld() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.clock.Now().Add(-l.window)
	removed := 0

	for key, stamps := range l.windows {
		recent := pruneBefore(stamps, cutoff)
		if len(recent) == 0 {
			delete(l.windows, key)
			removed++
			continue
		}
		l.windows[key] = recent
	}

	return removed
}

// Size возвращает количество отслеживаемых окон
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.windows)
}

// Run периодически вызывает ClearOld до отмены ctx
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.window
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := l.ClearOld(); removed > 0 && l.logger != nil {
				l.logger.Debug("Rate limit windows purged", "removed", removed, "tracked", l.Size())
			}
		case <-ctx.Done():
			return
		}
	}
}

// pruneBefore отбрасывает времена не позже cutoff.
// Времена в срезе упорядочены по возрастанию.
func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return stamps
	}
	return append(stamps[:0:0], stamps[idx:]...)
}
