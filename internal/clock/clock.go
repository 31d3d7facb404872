package clock

import (
	"sync"
	"time"
)

// Clock абстрагирует источник текущего времени.
// Компоненты со скользящими окнами и таймстемпами получают Clock через конструктор,
// чтобы в тестах время можно было двигать вручную.
type Clock interface {
	Now() time.Time
}

// Real возвращает системное время.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// Fake is a manually driven Clock for tests.
type Fake struct {
	now time.Time
	mu  sync.Mutex
}

// NewFake создает Fake, установленный на заданный момент времени.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

// Advance сдвигает время вперед на d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
}

// Set устанавливает время в t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = t
}

// Sequence представляет монотонно возрастающий счетчик.
// Используется для упорядочивания операций в offline очереди:
// номер присваивается при постановке и не меняется при повторных попытках.
type Sequence struct {
	counter int64
	mu      sync.Mutex
}

// NewSequence создает счетчик, начинающийся с 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next увеличивает счетчик и возвращает новое значение.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	return s.counter
}

// Observe поднимает счетчик до v, если v больше текущего значения.
// Используется при восстановлении очереди из хранилища.
func (s *Sequence) Observe(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v > s.counter {
		s.counter = v
	}
}

// Current возвращает текущее значение без изменения.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counter
}
