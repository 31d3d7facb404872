package auth

import "errors"

var (
	// ErrNotLoggedIn нет сохраненной сессии
	ErrNotLoggedIn = errors.New("not logged in, run 'minesync login' first")

	// ErrSessionExpired срок действия токена истек
	ErrSessionExpired = errors.New("session expired, run 'minesync login' again")
)
