package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// HashData вычисляет SHA256 над каноническим JSON представлением data.
// Возвращает hex-encoded строку (64 символа).
// Хеш не зависит от порядка ключей в data.
func HashData(data any) (string, error) {
	canonical, err := Canonicalize(data)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize data: %w", err)
	}

	hash := sha256.Sum256(canonical)
	return hex.EncodeToString(hash[:]), nil
}

// ValidateHash пересчитывает хеш data и сравнивает с expectedHash за постоянное время.
// Любая ошибка сериализации считается несовпадением.
func ValidateHash(data any, expectedHash string) bool {
	if expectedHash == "" {
		return false
	}

	computed, err := HashData(data)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(computed), []byte(expectedHash)) == 1
}
