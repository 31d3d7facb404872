package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignature_JSON(t *testing.T) {
	tests := []struct {
		name string
		want string
		sig  Signature
	}{
		{
			name: "value signature",
			sig:  ValueSignature([]byte{0xde, 0xad, 0xbe, 0xef}),
			want: `{"kind":"value","value":"deadbeef"}`,
		},
		{
			name: "disabled signature",
			sig:  DisabledSignature(),
			want: `{"kind":"disabled"}`,
		},
		{
			name: "zero signature",
			sig:  Signature{},
			want: `{"kind":"none"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.sig)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var decoded Signature
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.sig.Kind, decoded.Kind)
			assert.Equal(t, []byte(tt.sig.Value), []byte(decoded.Value))
		})
	}
}

func TestSignature_UnmarshalUnknownKind(t *testing.T) {
	var sig Signature
	err := json.Unmarshal([]byte(`{"kind":"magic"}`), &sig)
	assert.Error(t, err)
}

func TestOperationType_Valid(t *testing.T) {
	for _, opType := range OperationTypes {
		assert.True(t, opType.Valid(), string(opType))
	}
	assert.False(t, OperationType("nft_mint").Valid())
}

func TestOperation_Clone(t *testing.T) {
	op := Operation{
		ID:        "op-1",
		Type:      OpUserDataUpdate,
		UserID:    "user-1",
		Payload:   json.RawMessage(`{"balance":5}`),
		Signature: ValueSignature([]byte{1, 2, 3}),
		Seq:       7,
		Timestamp: 1000,
	}

	clone := op.Clone()
	assert.Equal(t, op, clone)

	// Изменение копии не затрагивает оригинал
	clone.Payload[2] = 'X'
	clone.Signature.Value[0] = 9
	assert.Equal(t, json.RawMessage(`{"balance":5}`), op.Payload)
	assert.Equal(t, byte(1), op.Signature.Value[0])
}

func TestSnapshot_IsNewerThan(t *testing.T) {
	older := Snapshot{LastUpdate: 100}
	newer := Snapshot{LastUpdate: 200}
	same := Snapshot{LastUpdate: 200}

	assert.True(t, newer.IsNewerThan(&older))
	assert.False(t, older.IsNewerThan(&newer))
	assert.False(t, same.IsNewerThan(&newer), "equal timestamps are not strictly newer")
}

func TestSnapshot_Clone(t *testing.T) {
	snap := DefaultSnapshot()
	snap.Balance = 42
	snap.Synergy["miners"] = 1.5
	snap.Stakes = append(snap.Stakes, Stake{ID: "s1", Amount: 10})

	clone := snap.Clone()
	clone.Synergy["miners"] = 3
	clone.Stakes[0].Amount = 99

	assert.Equal(t, 1.5, snap.Synergy["miners"])
	assert.Equal(t, float64(10), snap.Stakes[0].Amount)
	assert.Equal(t, 0, snap.FindStake("s1"))
	assert.Equal(t, -1, snap.FindStake("missing"))
}

func TestDefaultSnapshot(t *testing.T) {
	snap := DefaultSnapshot()
	assert.Zero(t, snap.Balance)
	assert.Zero(t, snap.TotalEarned)
	assert.Zero(t, snap.LastUpdate)
	assert.NotNil(t, snap.Synergy)
	assert.NotNil(t, snap.Stakes)
}

func TestSeverity(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
	assert.False(t, Severity("bogus").Valid())
	assert.True(t, SeverityLow.Valid())
}

func TestNewSecurityEvent(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	ev := NewSecurityEvent("user-1", EventDataDiscrepancy, SeverityHigh, nil, at)

	assert.Equal(t, "user-1", ev.UserID)
	assert.Equal(t, SeverityHigh, ev.Severity)
	assert.NotNil(t, ev.Details)
	assert.Equal(t, int64(1700000000000), ev.Timestamp)
}
