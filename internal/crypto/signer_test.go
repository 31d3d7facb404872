package crypto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/minesync/internal/models"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestOperation() *models.Operation {
	return &models.Operation{
		ID:        "op-1",
		Type:      models.OpUserDataUpdate,
		UserID:    "user-1",
		Payload:   json.RawMessage(`{"balance":105,"total_earned":105,"delta":5}`),
		Timestamp: 1700000000000,
		Seq:       1,
	}
}

func TestNewHMACSigner_ShortSecret(t *testing.T) {
	signer, err := NewHMACSigner([]byte("short"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSecretTooShort)
	assert.Nil(t, signer)
}

func TestHMACSigner_SignVerify(t *testing.T) {
	signer, err := NewHMACSigner(testSecret)
	require.NoError(t, err)

	op := newTestOperation()
	sig, err := signer.Sign(op, "user-1")
	require.NoError(t, err)

	assert.Equal(t, models.SignatureValue, sig.Kind)
	assert.Len(t, sig.Value, 32)
	assert.True(t, signer.Verify(op, "user-1", sig))
}

func TestHMACSigner_Deterministic(t *testing.T) {
	signer, err := NewHMACSigner(testSecret)
	require.NoError(t, err)

	op := newTestOperation()
	sig1, err := signer.Sign(op, "user-1")
	require.NoError(t, err)
	sig2, err := signer.Sign(op, "user-1")
	require.NoError(t, err)

	assert.Equal(t, sig1, sig2)
}

func TestHMACSigner_PayloadKeyOrder(t *testing.T) {
	signer, err := NewHMACSigner(testSecret)
	require.NoError(t, err)

	op := newTestOperation()
	sig, err := signer.Sign(op, "user-1")
	require.NoError(t, err)

	// Тот же payload с другим порядком ключей подпись не ломает
	reordered := newTestOperation()
	reordered.Payload = json.RawMessage(`{"delta":5,"total_earned":105,"balance":105}`)
	assert.True(t, signer.Verify(reordered, "user-1", sig))
}

func TestHMACSigner_DetectsTampering(t *testing.T) {
	signer, err := NewHMACSigner(testSecret)
	require.NoError(t, err)

	op := newTestOperation()
	sig, err := signer.Sign(op, "user-1")
	require.NoError(t, err)

	tests := []struct {
		mutate func(op *models.Operation) string
		name   string
	}{
		{
			name: "payload mutated",
			mutate: func(op *models.Operation) string {
				op.Payload = json.RawMessage(`{"balance":100105,"total_earned":105,"delta":5}`)
				return "user-1"
			},
		},
		{
			name: "replayed for another user",
			mutate: func(op *models.Operation) string {
				return "user-2"
			},
		},
		{
			name: "type mutated",
			mutate: func(op *models.Operation) string {
				op.Type = models.OpRewardClaim
				return "user-1"
			},
		},
		{
			name: "timestamp mutated",
			mutate: func(op *models.Operation) string {
				op.Timestamp++
				return "user-1"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutated := op.Clone()
			userID := tt.mutate(&mutated)
			assert.False(t, signer.Verify(&mutated, userID, sig))
		})
	}
}

func TestHMACSigner_RejectsNonValueSignatures(t *testing.T) {
	signer, err := NewHMACSigner(testSecret)
	require.NoError(t, err)

	op := newTestOperation()
	assert.False(t, signer.Verify(op, "user-1", models.DisabledSignature()))
	assert.False(t, signer.Verify(op, "user-1", models.Signature{}))
	assert.False(t, signer.Verify(op, "user-1", models.ValueSignature([]byte("garbage"))))
}

func TestHMACSigner_DifferentSecrets(t *testing.T) {
	a, err := NewHMACSigner(testSecret)
	require.NoError(t, err)
	b, err := NewHMACSigner([]byte("another-secret-of-sufficient-length"))
	require.NoError(t, err)

	op := newTestOperation()
	sig, err := a.Sign(op, "user-1")
	require.NoError(t, err)

	assert.False(t, b.Verify(op, "user-1", sig))
}

func TestHMACSigner_EmptyUser(t *testing.T) {
	signer, err := NewHMACSigner(testSecret)
	require.NoError(t, err)

	_, err = signer.Sign(newTestOperation(), "")
	assert.Error(t, err)
}

func TestDisabledSigner(t *testing.T) {
	var signer Signer = DisabledSigner{}

	op := newTestOperation()
	sig, err := signer.Sign(op, "user-1")
	require.NoError(t, err)

	assert.Equal(t, models.SignatureDisabled, sig.Kind)
	assert.Nil(t, sig.Value)
	assert.True(t, signer.Verify(op, "user-1", sig))
	assert.True(t, signer.Verify(op, "user-2", sig))
}
