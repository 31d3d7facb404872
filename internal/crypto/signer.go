package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/iudanet/minesync/internal/models"
)

// MinSecretLen минимальная длина секрета подписи в байтах
const MinSecretLen = 16

// hkdfInfo контекст деривации ключа подписи операций
var hkdfInfo = []byte("minesync operation signing v1")

// ErrSecretTooShort возвращается при слишком коротком секрете
var ErrSecretTooShort = errors.New("signing secret is too short")

// Signer подписывает операции offline очереди и проверяет подписи.
type Signer interface {
	// Sign вычисляет подпись операции для userID
	Sign(op *models.Operation, userID string) (models.Signature, error)

	// Verify проверяет подпись операции для userID
	Verify(op *models.Operation, userID string, sig models.Signature) bool
}

// signedTuple данные, покрываемые подписью.
// Привязка к user_id не позволяет повторить операцию от имени другого пользователя.
type signedTuple struct {
	Type      models.OperationType `json:"type"`
	Payload   json.RawMessage      `json:"payload"`
	UserID    string               `json:"userId"`
	Timestamp int64                `json:"timestamp"`
}

// HMACSigner подписывает операции HMAC-SHA256 с ключом, производным от секрета и userID.
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner создает HMACSigner.
// secret должен содержать не менее MinSecretLen байт.
func NewHMACSigner(secret []byte) (*HMACSigner, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrSecretTooShort, MinSecretLen, len(secret))
	}

	s := make([]byte, len(secret))
	copy(s, secret)

	return &HMACSigner{secret: s}, nil
}

// Sign вычисляет HMAC над каноническим (type, payload, userId, timestamp)
func (s *HMACSigner) Sign(op *models.Operation, userID string) (models.Signature, error) {
	mac, err := s.compute(op, userID)
	if err != nil {
		return models.Signature{}, err
	}
	return models.ValueSignature(mac), nil
}

// Verify пересчитывает HMAC и сравнивает.
// Маркер отключенного подписания этим подписчиком не принимается.
func (s *HMACSigner) Verify(op *models.Operation, userID string, sig models.Signature) bool {
	switch sig.Kind {
	case models.SignatureValue:
		expected, err := s.compute(op, userID)
		if err != nil {
			return false
		}
		return hmac.Equal(expected, sig.Value)
	case models.SignatureDisabled, models.SignatureNone:
		return false
	default:
		return false
	}
}

func (s *HMACSigner) compute(op *models.Operation, userID string) ([]byte, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	key, err := s.userKey(userID)
	if err != nil {
		return nil, err
	}

	payload := op.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	canonical, err := Canonicalize(signedTuple{
		Type:      op.Type,
		Payload:   payload,
		UserID:    userID,
		Timestamp: op.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize operation: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(canonical)
	return mac.Sum(nil), nil
}

// userKey выводит ключ пользователя через HKDF-SHA256(secret, salt=userID)
func (s *HMACSigner) userKey(userID string) ([]byte, error) {
	reader := hkdf.New(sha256.New, s.secret, []byte(userID), hkdfInfo)

	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	return key, nil
}

// DisabledSigner используется, когда подписание отключено в конфигурации.
// Выдает маркер DisabledSignature и принимает любую подпись.
type DisabledSigner struct{}

// Sign возвращает маркер отключенного подписания
func (DisabledSigner) Sign(_ *models.Operation, _ string) (models.Signature, error) {
	return models.DisabledSignature(), nil
}

// Verify принимает любую подпись
func (DisabledSigner) Verify(_ *models.Operation, _ string, _ models.Signature) bool {
	return true
}
