// Package memstore реализует remote.Store в памяти для тестов синхронизации.
package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/iudanet/minesync/internal/client/remote"
	"github.com/iudanet/minesync/internal/models"
)

// Store потокобезопасное in-memory удаленное хранилище.
// Повторяет серверные правила: дедупликация по opID и проверка MaxBalanceChange.
type Store struct {
	users     map[string]*models.UserAccount
	stakes    map[string][]models.Stake
	synergy   map[string]models.Synergy
	gameData  map[string]*models.RemoteSnapshot
	processed map[string]struct{}
	failures  map[string]*failure
	events    []models.SecurityEvent
	calls     map[string]int

	// Offline все вызовы возвращают remote.ErrUnavailable
	Offline bool
	// MaxBalanceChange 0 отключает проверку
	MaxBalanceChange float64
	// Now источник времени для last_updated
	Now func() time.Time

	mu sync.Mutex
}

// New создает пустое хранилище
func New() *Store {
	return &Store{
		users:     make(map[string]*models.UserAccount),
		stakes:    make(map[string][]models.Stake),
		synergy:   make(map[string]models.Synergy),
		gameData:  make(map[string]*models.RemoteSnapshot),
		processed: make(map[string]struct{}),
		failures:  make(map[string]*failure),
		calls:     make(map[string]int),
		Now:       time.Now,
	}
}

var _ remote.Store = (*Store)(nil)

// SetOffline переключает доступность
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Offline = offline
}

// failure внедренный отказ метода
type failure struct {
	err       error
	remaining int
}

// FailNext заставляет следующий вызов method вернуть err
func (s *Store) FailNext(method string, err error) {
	s.FailTimes(method, 1, err)
}

// FailTimes заставляет следующие n вызовов method вернуть err
func (s *Store) FailTimes(method string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = &failure{err: err, remaining: n}
}

// Calls возвращает количество вызовов method
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// PutUser создает или заменяет пользователя
func (s *Store) PutUser(u models.UserAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

// PutGameData записывает снапшот с заданным last_updated
func (s *Store) PutGameData(userID string, snap models.Snapshot, lastUpdated int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameData[userID] = &models.RemoteSnapshot{Snapshot: snap.Clone(), LastUpdated: lastUpdated}
}

// Stakes возвращает копию стейков пользователя
func (s *Store) Stakes(userID string) []models.Stake {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Stake(nil), s.stakes[userID]...)
}

// Synergy возвращает синергию пользователя
func (s *Store) Synergy(userID string) models.Synergy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synergy[userID]
}

// Events возвращает копию журнала безопасности
func (s *Store) Events() []models.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SecurityEvent(nil), s.events...)
}

// EventsOfType возвращает события заданного типа
func (s *Store) EventsOfType(eventType string) []models.SecurityEvent {
	var out []models.SecurityEvent
	for _, e := range s.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// enter учитывает вызов и возвращает ошибку недоступности или внедренный отказ.
// Вызывается под s.mu.
func (s *Store) enter(method string) error {
	s.calls[method]++
	if s.Offline {
		return fmt.Errorf("%s: %w", method, remote.ErrUnavailable)
	}
	if f, ok := s.failures[method]; ok {
		f.remaining--
		if f.remaining <= 0 {
			delete(s.failures, method)
		}
		return f.err
	}
	return nil
}

// applied сообщает, была ли операция пользователя уже применена. Вызывается под s.mu.
func (s *Store) applied(userID, opID string) bool {
	_, ok := s.processed[userID+"/"+opID]
	return opID != "" && ok
}

// markApplied запоминает ключ идемпотентности пользователя. Вызывается под s.mu.
func (s *Store) markApplied(userID, opID string) {
	if opID != "" {
		s.processed[userID+"/"+opID] = struct{}{}
	}
}

func (s *Store) user(userID string) *models.UserAccount {
	u, ok := s.users[userID]
	if !ok {
		u = &models.UserAccount{ID: userID}
		s.users[userID] = u
	}
	return u
}

// GetUser implements remote.Store
func (s *Store) GetUser(ctx context.Context, userID string) (*models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("GetUser"); err != nil {
		return nil, err
	}

	u, ok := s.users[userID]
	if !ok {
		return nil, remote.ErrNotFound
	}
	out := *u
	return &out, nil
}

// UpdateUserBalance implements remote.Store
func (s *Store) UpdateUserBalance(ctx context.Context, userID string, balance, totalEarned float64, opID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("UpdateUserBalance"); err != nil {
		return err
	}

	u := s.user(userID)
	if s.MaxBalanceChange > 0 && math.Abs(balance-u.Balance) > s.MaxBalanceChange {
		return fmt.Errorf("balance change too large: %w", remote.ErrRejected)
	}
	if s.applied(userID, opID) {
		return nil
	}

	u.Balance = balance
	u.TotalEarned = totalEarned
	u.LastActive = s.Now().UnixMilli()
	s.markApplied(userID, opID)
	return nil
}

// InsertStake implements remote.Store
func (s *Store) InsertStake(ctx context.Context, userID string, stake models.Stake, opID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("InsertStake"); err != nil {
		return err
	}
	if s.applied(userID, opID) {
		return nil
	}

	for _, st := range s.stakes[userID] {
		if st.ID == stake.ID {
			return fmt.Errorf("stake %s exists: %w", stake.ID, remote.ErrRejected)
		}
	}

	// Сумма стейка списывается с баланса
	u := s.user(userID)
	if stake.Amount > u.Balance {
		return fmt.Errorf("insufficient balance: %w", remote.ErrRejected)
	}
	u.Balance -= stake.Amount

	s.stakes[userID] = append(s.stakes[userID], stake)
	s.markApplied(userID, opID)
	return nil
}

// UpdateStake implements remote.Store
func (s *Store) UpdateStake(ctx context.Context, userID string, update models.StakeUpdatePayload, opID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("UpdateStake"); err != nil {
		return err
	}

	stakes := s.stakes[userID]
	for i := range stakes {
		if stakes[i].ID != update.StakeID {
			continue
		}
		if s.applied(userID, opID) {
			return nil
		}
		if update.AccumulatedRewards != nil {
			stakes[i].AccumulatedRewards = *update.AccumulatedRewards
		}
		if update.LastClaimAt != nil {
			stakes[i].LastClaimAt = *update.LastClaimAt
		}
		if update.Status != "" {
			stakes[i].Status = update.Status
		}
		s.markApplied(userID, opID)
		return nil
	}

	return remote.ErrNotFound
}

// ClaimReward implements remote.Store
func (s *Store) ClaimReward(ctx context.Context, userID, stakeID string, amount float64, claimedAt int64, opID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("ClaimReward"); err != nil {
		return err
	}

	stakes := s.stakes[userID]
	for i := range stakes {
		if stakes[i].ID != stakeID {
			continue
		}
		if stakes[i].Status != models.StakeActive {
			return fmt.Errorf("stake %s is %s: %w", stakeID, stakes[i].Status, remote.ErrRejected)
		}
		if s.MaxBalanceChange > 0 && amount > s.MaxBalanceChange {
			return fmt.Errorf("claim too large: %w", remote.ErrRejected)
		}
		if s.applied(userID, opID) {
			return nil
		}
		u := s.user(userID)
		u.Balance += amount
		u.TotalEarned += amount
		stakes[i].ClaimedTotal += amount
		stakes[i].AccumulatedRewards = math.Max(0, stakes[i].AccumulatedRewards-amount)
		stakes[i].LastClaimAt = claimedAt
		s.markApplied(userID, opID)
		return nil
	}

	return fmt.Errorf("stake %s: %w", stakeID, remote.ErrNotFound)
}

// UpsertSynergy implements remote.Store
func (s *Store) UpsertSynergy(ctx context.Context, userID string, synergy models.Synergy, opID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("UpsertSynergy"); err != nil {
		return err
	}
	if s.applied(userID, opID) {
		return nil
	}

	cp := make(models.Synergy, len(synergy))
	for k, v := range synergy {
		cp[k] = v
	}
	s.synergy[userID] = cp
	s.markApplied(userID, opID)
	return nil
}

// GetGameData implements remote.Store
func (s *Store) GetGameData(ctx context.Context, userID string) (*models.RemoteSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("GetGameData"); err != nil {
		return nil, err
	}

	gd, ok := s.gameData[userID]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return &models.RemoteSnapshot{Snapshot: gd.Snapshot.Clone(), LastUpdated: gd.LastUpdated}, nil
}

// UpsertGameData implements remote.Store
func (s *Store) UpsertGameData(ctx context.Context, userID string, snapshot models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("UpsertGameData"); err != nil {
		return err
	}

	lastUpdated := snapshot.LastUpdate
	if lastUpdated <= 0 {
		lastUpdated = s.Now().UnixMilli()
	}
	s.gameData[userID] = &models.RemoteSnapshot{Snapshot: snapshot.Clone(), LastUpdated: lastUpdated}
	return nil
}

// RecordSecurityEvent implements remote.Store
func (s *Store) RecordSecurityEvent(ctx context.Context, event models.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("RecordSecurityEvent"); err != nil {
		return err
	}

	s.events = append(s.events, event)
	return nil
}

// ListSecurityEvents implements remote.Store
func (s *Store) ListSecurityEvents(ctx context.Context, userID string, since time.Time, minSeverity models.Severity) ([]models.SecurityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("ListSecurityEvents"); err != nil {
		return nil, err
	}

	var out []models.SecurityEvent
	for _, e := range s.events {
		if e.UserID != userID || e.Timestamp < since.UnixMilli() {
			continue
		}
		if minSeverity != "" && !e.Severity.AtLeast(minSeverity) {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}
