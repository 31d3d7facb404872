package models

// StakeStatus состояние стейка
type StakeStatus string

// Возможные состояния стейка
const (
	StakeActive    StakeStatus = "active"
	StakeCompleted StakeStatus = "completed"
	StakeCancelled StakeStatus = "cancelled"
)

// Stake представляет позицию стейкинга пользователя
type Stake struct {
	ID                 string      `json:"id"`
	Status             StakeStatus `json:"status"`
	Amount             float64     `json:"amount"`
	Rate               float64     `json:"rate"` // Rate годовая доходность (0.12 = 12%)
	AccumulatedRewards float64     `json:"accumulated_rewards"`
	ClaimedTotal       float64     `json:"claimed_total"`
	StartedAt          int64       `json:"started_at"`    // unix ms
	LastClaimAt        int64       `json:"last_claim_at"` // unix ms, 0 если не было
	LockDays           int         `json:"lock_days"`
}

// Synergy множители бонусов, ключ - название синергии
type Synergy map[string]float64

// Snapshot полное сериализуемое состояние экономики пользователя.
// Хранится локально (быстро, оптимистично) и удаленно (авторитетно).
type Snapshot struct {
	Synergy     Synergy `json:"synergy"`
	Stakes      []Stake `json:"stakes"`
	Balance     float64 `json:"balance"`
	TotalEarned float64 `json:"total_earned"`
	Energy      float64 `json:"energy"`
	MaxEnergy   float64 `json:"max_energy"`
	MiningRate  float64 `json:"mining_rate"`
	LastUpdate  int64   `json:"last_update"` // unix ms
}

// Значения по умолчанию для нового игрока
const (
	DefaultMaxEnergy  = 100
	DefaultMiningRate = 1
)

// DefaultSnapshot создает безопасное состояние по умолчанию (нулевой баланс)
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Synergy:    Synergy{},
		Stakes:     []Stake{},
		Energy:     DefaultMaxEnergy,
		MaxEnergy:  DefaultMaxEnergy,
		MiningRate: DefaultMiningRate,
	}
}

// IsNewerThan сообщает, что снапшот строго новее other (whole-object last-write-wins)
func (s *Snapshot) IsNewerThan(other *Snapshot) bool {
	return s.LastUpdate > other.LastUpdate
}

// Clone создает глубокую копию снапшота
func (s *Snapshot) Clone() Snapshot {
	out := *s

	if s.Synergy != nil {
		out.Synergy = make(Synergy, len(s.Synergy))
		for k, v := range s.Synergy {
			out.Synergy[k] = v
		}
	}

	if s.Stakes != nil {
		out.Stakes = make([]Stake, len(s.Stakes))
		copy(out.Stakes, s.Stakes)
	}

	return out
}

// FindStake возвращает индекс стейка с заданным ID или -1
func (s *Snapshot) FindStake(id string) int {
	for i := range s.Stakes {
		if s.Stakes[i].ID == id {
			return i
		}
	}
	return -1
}

// RemoteSnapshot снапшот из удаленного хранилища вместе с отметкой last_updated
type RemoteSnapshot struct {
	Snapshot    Snapshot `json:"game_data"`
	LastUpdated int64    `json:"last_updated"` // unix ms
}
