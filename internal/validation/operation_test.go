package validation

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/minesync/internal/models"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func floatPtr(f float64) *float64 {
	return &f
}

func TestValidateOperation(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		wantErr error
		payload any
		name    string
		opType  models.OperationType
	}{
		{
			name:    "valid deposit",
			opType:  models.OpUserDataUpdate,
			payload: models.UserDataUpdatePayload{Balance: 105, TotalEarned: 105, Delta: 5},
		},
		{
			name:    "valid withdrawal",
			opType:  models.OpUserDataUpdate,
			payload: models.UserDataUpdatePayload{Balance: 97, TotalEarned: 100, Delta: -3},
		},
		{
			name:    "balance delta too large",
			opType:  models.OpUserDataUpdate,
			payload: models.UserDataUpdatePayload{Balance: 20001, TotalEarned: 20001, Delta: 10001},
			wantErr: ErrBalanceChangeTooLarge,
		},
		{
			name:    "negative balance",
			opType:  models.OpUserDataUpdate,
			payload: models.UserDataUpdatePayload{Balance: -1, Delta: -1},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "valid stake",
			opType:  models.OpStakeCreate,
			payload: models.StakeCreatePayload{StakeID: "s1", Amount: 100, Rate: 0.12, LockDays: 30},
		},
		{
			name:    "stake amount below minimum",
			opType:  models.OpStakeCreate,
			payload: models.StakeCreatePayload{StakeID: "s1", Amount: 0.5, Rate: 0.12},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "stake amount above maximum",
			opType:  models.OpStakeCreate,
			payload: models.StakeCreatePayload{StakeID: "s1", Amount: 2_000_000, Rate: 0.12},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "stake rate too high",
			opType:  models.OpStakeCreate,
			payload: models.StakeCreatePayload{StakeID: "s1", Amount: 100, Rate: 0.9},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "stake rate zero",
			opType:  models.OpStakeCreate,
			payload: models.StakeCreatePayload{StakeID: "s1", Amount: 100, Rate: 0},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "stake without id",
			opType:  models.OpStakeCreate,
			payload: models.StakeCreatePayload{Amount: 100, Rate: 0.1},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "valid stake update",
			opType:  models.OpStakeUpdate,
			payload: models.StakeUpdatePayload{StakeID: "s1", AccumulatedRewards: floatPtr(3.5)},
		},
		{
			name:    "empty stake update",
			opType:  models.OpStakeUpdate,
			payload: models.StakeUpdatePayload{StakeID: "s1"},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "unknown stake status",
			opType:  models.OpStakeUpdate,
			payload: models.StakeUpdatePayload{StakeID: "s1", Status: "frozen"},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "valid claim",
			opType:  models.OpRewardClaim,
			payload: models.RewardClaimPayload{StakeID: "s1", Amount: 12},
		},
		{
			name:    "claim too large",
			opType:  models.OpRewardClaim,
			payload: models.RewardClaimPayload{StakeID: "s1", Amount: 10001},
			wantErr: ErrBalanceChangeTooLarge,
		},
		{
			name:    "non-positive claim",
			opType:  models.OpRewardClaim,
			payload: models.RewardClaimPayload{StakeID: "s1", Amount: 0},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "valid synergy",
			opType:  models.OpSynergyUpdate,
			payload: models.SynergyUpdatePayload{Synergy: models.Synergy{"drills": 1.2}},
		},
		{
			name:    "negative synergy",
			opType:  models.OpSynergyUpdate,
			payload: models.SynergyUpdatePayload{Synergy: models.Synergy{"drills": -1}},
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "unknown type",
			opType:  "nft_mint",
			payload: map[string]any{},
			wantErr: ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOperation(tt.opType, mustJSON(t, tt.payload), limits)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateOperation_MalformedPayload(t *testing.T) {
	err := ValidateOperation(models.OpUserDataUpdate, json.RawMessage(`{"balance":"lots"}`), DefaultLimits())
	assert.ErrorIs(t, err, ErrInvalidPayload)

	err = ValidateOperation(models.OpUserDataUpdate, nil, DefaultLimits())
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestValidateBalanceChange(t *testing.T) {
	limits := Limits{MaxBalanceChange: 100}

	assert.NoError(t, ValidateBalanceChange(100, 200, limits), "boundary is inclusive")
	assert.NoError(t, ValidateBalanceChange(200, 100, limits))
	assert.ErrorIs(t, ValidateBalanceChange(100, 201, limits), ErrBalanceChangeTooLarge)
	assert.ErrorIs(t, ValidateBalanceChange(201, 100, limits), ErrBalanceChangeTooLarge)
	assert.ErrorIs(t, ValidateBalanceChange(0, math.NaN(), limits), ErrInvalidPayload)
	assert.ErrorIs(t, ValidateBalanceChange(math.Inf(1), 0, limits), ErrInvalidPayload)
}
