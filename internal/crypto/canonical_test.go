package crypto

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/minesync/internal/models"
)

func TestCanonicalize_SortsKeys(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{
			name:  "flat object",
			input: json.RawMessage(`{"b":2,"a":1}`),
			want:  `{"a":1,"b":2}`,
		},
		{
			name:  "nested object",
			input: json.RawMessage(`{"z":{"y":true,"x":null},"a":[3,1,2]}`),
			want:  `{"a":[3,1,2],"z":{"x":null,"y":true}}`,
		},
		{
			name:  "html is not escaped",
			input: map[string]string{"tag": "<b>&</b>"},
			want:  `{"tag":"<b>&</b>"}`,
		},
		{
			name:  "scalar",
			input: 42,
			want:  `42`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestCanonicalize_NFC(t *testing.T) {
	// "é" в виде e + combining acute (NFD) и в виде одного code point (NFC)
	decomposed := map[string]string{"name": "é"}
	composed := map[string]string{"name": "\u00e9"}

	a, err := Canonicalize(decomposed)
	require.NoError(t, err)
	b, err := Canonicalize(composed)
	require.NoError(t, err)

	assert.Equal(t, string(b), string(a))
}

func TestCanonicalize_Unsupported(t *testing.T) {
	_, err := Canonicalize(make(chan int))
	assert.Error(t, err)
}

func TestCanonicalize_SnapshotGolden(t *testing.T) {
	snap := models.Snapshot{
		Synergy: models.Synergy{"miners": 1.5},
		Stakes: []models.Stake{
			{
				ID:        "s1",
				Status:    models.StakeActive,
				Amount:    100,
				Rate:      0.12,
				StartedAt: 1700000000000,
				LockDays:  30,
			},
		},
		Balance:     250.5,
		TotalEarned: 1000,
		Energy:      80,
		MaxEnergy:   100,
		MiningRate:  2,
		LastUpdate:  1700000000500,
	}

	got, err := Canonicalize(snap)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "canonical_snapshot", got)
}
