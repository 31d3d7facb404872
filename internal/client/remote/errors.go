package remote

import "errors"

// Ошибки удаленного хранилища
var (
	// ErrUnavailable сеть недоступна или сервер вернул 5xx. Операцию можно повторить.
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrRejected сервер отклонил запрос по бизнес-правилам. Повтор не поможет.
	ErrRejected = errors.New("rejected by remote store")

	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("not found in remote store")

	// ErrUnauthorized нет сессии или токен истек
	ErrUnauthorized = errors.New("unauthorized")
)

// IsRetryable сообщает, имеет ли смысл повторять операцию после err
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
