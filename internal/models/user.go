package models

// UserAccount авторитетные числовые поля пользователя из таблицы users
type UserAccount struct {
	ID          string  `json:"id"`
	Balance     float64 `json:"balance"`
	TotalEarned float64 `json:"total_earned"`
	LastActive  int64   `json:"last_active"` // unix ms
}
