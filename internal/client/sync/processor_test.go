package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/minesync/internal/client/remote"
	"github.com/iudanet/minesync/internal/crypto"
	"github.com/iudanet/minesync/internal/models"
)

func TestProcessor_Offline(t *testing.T) {
	e := newEnv(t)
	e.enqueue(t, models.OpSynergyUpdate, synergy(1))

	_, err := e.processor(ProcessorConfig{}).Drain(context.Background())
	assert.ErrorIs(t, err, ErrOffline)
	assert.Equal(t, 1, e.queue.Len())
}

func TestProcessor_SyncInProgress(t *testing.T) {
	e := newEnv(t)
	e.state.SetOnline(true)
	require.True(t, e.state.beginSync())
	defer e.state.endSync()

	_, err := e.processor(ProcessorConfig{}).Drain(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
}

func TestProcessor_AppliesAllTypesInOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.state.SetOnline(true)
	e.remote.PutUser(models.UserAccount{ID: testUser, Balance: 1000, TotalEarned: 1000})

	rewards := 4.0
	e.enqueue(t, models.OpUserDataUpdate, models.UserDataUpdatePayload{Balance: 1005, TotalEarned: 1005, Delta: 5})
	e.enqueue(t, models.OpStakeCreate, models.StakeCreatePayload{StakeID: "s1", Amount: 100, Rate: 0.1, LockDays: 30})
	e.enqueue(t, models.OpStakeUpdate, models.StakeUpdatePayload{StakeID: "s1", AccumulatedRewards: &rewards})
	e.enqueue(t, models.OpRewardClaim, models.RewardClaimPayload{StakeID: "s1", Amount: 3})
	e.enqueue(t, models.OpSynergyUpdate, synergy(1))
	e.enqueue(t, models.OpSynergyUpdate, synergy(2))

	res, err := e.processor(ProcessorConfig{}).Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Succeeded)
	assert.Equal(t, 6, res.Processed())
	assert.Zero(t, res.Remaining)
	assert.Zero(t, e.queue.Len())

	user, err := e.remote.GetUser(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1005.0-100+3, user.Balance)
	assert.Equal(t, 1008.0, user.TotalEarned)

	stakes := e.remote.Stakes(testUser)
	require.Len(t, stakes, 1)
	assert.Equal(t, 3.0, stakes[0].ClaimedTotal)
	assert.Equal(t, 1.0, stakes[0].AccumulatedRewards)
	assert.Equal(t, 2.0, e.remote.Synergy(testUser)["miners"])

	assert.NotZero(t, e.state.Snapshot().LastSyncTime)
}

func TestProcessor_BatchSize(t *testing.T) {
	e := newEnv(t)
	e.state.SetOnline(true)
	for i := 0; i < 5; i++ {
		e.enqueue(t, models.OpSynergyUpdate, synergy(float64(i)))
	}

	res, err := e.processor(ProcessorConfig{BatchSize: 2}).Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 3, res.Remaining)
	assert.Equal(t, 1.0, e.remote.Synergy(testUser)["miners"])
}

func TestProcessor_RetryThenDrop(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.state.SetOnline(true)
	e.remote.FailTimes("UpsertSynergy", 100, remote.ErrUnavailable)

	id := e.enqueue(t, models.OpSynergyUpdate, synergy(1))
	p := e.processor(ProcessorConfig{MaxRetryAttempts: 3})

	for attempt := 1; attempt <= 2; attempt++ {
		res, err := p.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Retried)

		pending := e.queue.Pending()
		require.Len(t, pending, 1)
		assert.Equal(t, id, pending[0].ID)
		assert.Equal(t, attempt, pending[0].RetryCount)
	}

	res, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
	assert.Zero(t, e.queue.Len())

	st := e.state.Snapshot()
	require.Len(t, st.SyncErrors, 1)
	assert.Contains(t, st.SyncErrors[0], id)
	assert.Contains(t, st.SyncErrors[0], "after 3 attempts")
	assert.Equal(t, 3, e.remote.Calls("UpsertSynergy"))
}

func TestProcessor_TransientFailureRecovers(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.state.SetOnline(true)
	e.remote.FailNext("UpsertSynergy", remote.ErrUnavailable)

	e.enqueue(t, models.OpSynergyUpdate, synergy(7))
	p := e.processor(ProcessorConfig{})

	res, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)

	res, err = p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 7.0, e.remote.Synergy(testUser)["miners"])
	assert.Empty(t, e.state.Snapshot().SyncErrors)
}

func TestProcessor_RejectedIsNotRetried(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.state.SetOnline(true)
	e.remote.PutUser(models.UserAccount{ID: testUser, Balance: 1000, TotalEarned: 1000})
	require.NoError(t, e.remote.InsertStake(ctx, testUser, models.Stake{ID: "s1", Status: models.StakeActive, Amount: 100}, "seed-1"))
	require.NoError(t, e.remote.UpdateStake(ctx, testUser, models.StakeUpdatePayload{StakeID: "s1", Status: models.StakeCompleted}, "seed-2"))

	// Стейк уже завершен: сервер отклоняет получение награды
	id := e.enqueue(t, models.OpRewardClaim, models.RewardClaimPayload{StakeID: "s1", Amount: 1})
	e.enqueue(t, models.OpSynergyUpdate, synergy(3))

	res, err := e.processor(ProcessorConfig{}).Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 1, res.Succeeded)
	assert.Zero(t, e.queue.Len())
	assert.Equal(t, 1, e.remote.Calls("ClaimReward"))
	assert.Equal(t, 3.0, e.remote.Synergy(testUser)["miners"])
	assert.Len(t, e.remote.EventsOfType(models.EventOperationRejected), 1)

	st := e.state.Snapshot()
	require.Len(t, st.SyncErrors, 1)
	assert.Contains(t, st.SyncErrors[0], id)
	assert.Contains(t, st.SyncErrors[0], "rejected")
}

func TestProcessor_MissingStakeIsRetried(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.state.SetOnline(true)

	id := e.enqueue(t, models.OpRewardClaim, models.RewardClaimPayload{StakeID: "missing", Amount: 1})
	p := e.processor(ProcessorConfig{MaxRetryAttempts: 2})

	res, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)
	assert.Zero(t, res.Rejected)

	pending := e.queue.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	assert.Empty(t, e.state.Snapshot().SyncErrors)

	res, err = p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
	assert.Zero(t, e.queue.Len())

	st := e.state.Snapshot()
	require.Len(t, st.SyncErrors, 1)
	assert.Contains(t, st.SyncErrors[0], id)
	assert.Len(t, e.remote.EventsOfType(models.EventPermanentSyncFailure), 1)
}

func TestProcessor_RetriedHeadBlocksLaterOperations(t *testing.T) {
	tests := []struct {
		follow    func(t *testing.T, e *env)
		name      string
		wantCalls string
		wantClaim float64
		wantBal   float64
	}{
		{
			name: "claim on the pending stake",
			follow: func(t *testing.T, e *env) {
				e.enqueue(t, models.OpRewardClaim, models.RewardClaimPayload{StakeID: "s1", Amount: 3})
			},
			wantCalls: "ClaimReward",
			wantClaim: 3,
			wantBal:   1000 - 100 + 3,
		},
		{
			name: "absolute balance after the stake",
			follow: func(t *testing.T, e *env) {
				e.enqueue(t, models.OpUserDataUpdate, models.UserDataUpdatePayload{Balance: 905, TotalEarned: 1005, Delta: 5})
			},
			wantCalls: "GetUser",
			wantBal:   905,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newEnv(t)
			e.state.SetOnline(true)
			e.remote.PutUser(models.UserAccount{ID: testUser, Balance: 1000, TotalEarned: 1000})
			e.remote.FailNext("InsertStake", remote.ErrUnavailable)

			e.enqueue(t, models.OpStakeCreate, models.StakeCreatePayload{StakeID: "s1", Amount: 100, Rate: 0.1, LockDays: 30})
			tt.follow(t, e)
			p := e.processor(ProcessorConfig{})

			res, err := p.Drain(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Retried)
			assert.Zero(t, res.Processed())
			assert.Equal(t, 2, res.Remaining)
			assert.Zero(t, e.remote.Calls(tt.wantCalls))

			res, err = p.Drain(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, res.Succeeded)
			assert.Zero(t, e.queue.Len())

			user, err := e.remote.GetUser(ctx, testUser)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBal, user.Balance)

			stakes := e.remote.Stakes(testUser)
			require.Len(t, stakes, 1)
			assert.Equal(t, tt.wantClaim, stakes[0].ClaimedTotal)
			assert.Empty(t, e.state.Snapshot().SyncErrors)
		})
	}
}

func TestProcessor_InvalidSignatureDiscarded(t *testing.T) {
	tests := []struct {
		signer func(t *testing.T) crypto.Signer
		name   string
	}{
		{
			name: "other secret",
			signer: func(t *testing.T) crypto.Signer {
				s, err := crypto.NewHMACSigner([]byte("some-other-secret-9876543210"))
				require.NoError(t, err)
				return s
			},
		},
		{
			name:   "disabled signature",
			signer: func(t *testing.T) crypto.Signer { return crypto.DisabledSigner{} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.state.SetOnline(true)
			e.queue = e.newQueue(t, tt.signer(t))
			e.enqueue(t, models.OpSynergyUpdate, synergy(1))

			res, err := e.processor(ProcessorConfig{}).Drain(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, res.Invalid)
			assert.Zero(t, e.queue.Len())
			assert.Zero(t, e.remote.Calls("UpsertSynergy"))
			require.Len(t, e.state.Snapshot().SyncErrors, 1)
			assert.Contains(t, e.state.Snapshot().SyncErrors[0], ErrInvalidSignature.Error())

			events := e.remote.EventsOfType(models.EventInvalidSignature)
			require.Len(t, events, 1)
			assert.Equal(t, models.SeverityHigh, events[0].Severity)
		})
	}
}

func TestProcessor_TamperedPayloadDiscarded(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.state.SetOnline(true)
	e.enqueue(t, models.OpSynergyUpdate, synergy(1))

	// Подменяем тело операции в сохраненной очереди
	tampered := &tamperQueue{OperationQueue: e.queue, payload: []byte(`{"synergy":{"miners":1000}}`)}
	p := NewProcessor(testUser, ProcessorConfig{}, tampered, e.remote, e.signer, e.recorder, e.state, e.clock, e.logger)

	res, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Invalid)
	assert.Nil(t, e.remote.Synergy(testUser))
}

type tamperQueue struct {
	OperationQueue
	payload []byte
}

func (q *tamperQueue) Batch(n int) []models.Operation {
	ops := q.OperationQueue.Batch(n)
	for i := range ops {
		ops[i].Payload = q.payload
	}
	return ops
}

func TestProcessor_SuspiciousActivityBlocks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.state.SetOnline(true)

	// Старое событие за пределами окна не учитывается
	old := models.NewSecurityEvent(testUser, models.EventSuspiciousBalance, models.SeverityCritical, nil, e.clock.Now().Add(-2*time.Hour))
	require.NoError(t, e.remote.RecordSecurityEvent(ctx, old))
	for i := 0; i < 4; i++ {
		ev := models.NewSecurityEvent(testUser, models.EventSuspiciousBalance, models.SeverityHigh, nil, e.clock.Now().Add(-time.Minute))
		require.NoError(t, e.remote.RecordSecurityEvent(ctx, ev))
	}
	// low не учитывается
	require.NoError(t, e.remote.RecordSecurityEvent(ctx, models.NewSecurityEvent(testUser, "x", models.SeverityLow, nil, e.clock.Now())))

	p := e.processor(ProcessorConfig{SuspiciousActivityThreshold: 5})

	e.enqueue(t, models.OpSynergyUpdate, synergy(1))
	res, err := p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)

	// Пятое событие high переводит пользователя в блокировку
	require.NoError(t, e.remote.RecordSecurityEvent(ctx, models.NewSecurityEvent(testUser, "y", models.SeverityHigh, nil, e.clock.Now())))

	e.enqueue(t, models.OpSynergyUpdate, synergy(2))
	e.enqueue(t, models.OpSynergyUpdate, synergy(3))
	res, err = p.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Blocked)
	assert.Zero(t, e.queue.Len())
	assert.Equal(t, 1.0, e.remote.Synergy(testUser)["miners"])

	blocked := e.remote.EventsOfType(models.EventOperationBlocked)
	require.Len(t, blocked, 2)
	assert.Equal(t, models.SeverityMedium, blocked[0].Severity)
}

func TestProcessor_GateUnavailableKeepsQueue(t *testing.T) {
	e := newEnv(t)
	e.state.SetOnline(true)
	e.remote.FailNext("ListSecurityEvents", remote.ErrUnavailable)
	e.enqueue(t, models.OpSynergyUpdate, synergy(1))

	_, err := e.processor(ProcessorConfig{}).Drain(context.Background())
	assert.ErrorIs(t, err, remote.ErrUnavailable)

	pending := e.queue.Pending()
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].RetryCount)
	assert.False(t, e.state.IsSyncing())
}

func TestProcessor_UnauthorizedAbortsWithoutRetry(t *testing.T) {
	e := newEnv(t)
	e.state.SetOnline(true)
	e.remote.FailNext("UpsertSynergy", remote.ErrUnauthorized)
	e.enqueue(t, models.OpSynergyUpdate, synergy(1))
	e.enqueue(t, models.OpSynergyUpdate, synergy(2))

	res, err := e.processor(ProcessorConfig{}).Drain(context.Background())
	assert.ErrorIs(t, err, remote.ErrUnauthorized)
	assert.Equal(t, 2, res.Remaining)
	assert.Zero(t, e.queue.Pending()[0].RetryCount)
}

func TestProcessor_BalanceDivergenceRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.state.SetOnline(true)
	e.remote.PutUser(models.UserAccount{ID: testUser, Balance: 50_000, TotalEarned: 50_000})

	e.enqueue(t, models.OpUserDataUpdate, models.UserDataUpdatePayload{Balance: 105, TotalEarned: 105, Delta: 5})

	res, err := e.processor(ProcessorConfig{}).Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rejected)
	assert.Zero(t, e.remote.Calls("UpdateUserBalance"))

	user, err := e.remote.GetUser(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 50_000.0, user.Balance)
	assert.Len(t, e.state.Snapshot().SyncErrors, 1)

	events := e.remote.EventsOfType(models.EventBalanceDivergence)
	require.Len(t, events, 1)
	assert.Equal(t, models.SeverityHigh, events[0].Severity)
}

func TestProcessor_NewUserBalance(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.state.SetOnline(true)

	e.enqueue(t, models.OpUserDataUpdate, models.UserDataUpdatePayload{Balance: 10, TotalEarned: 10, Delta: 10})

	res, err := e.processor(ProcessorConfig{}).Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)

	user, err := e.remote.GetUser(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 10.0, user.Balance)
}

func TestProcessor_EmptyQueue(t *testing.T) {
	e := newEnv(t)
	e.state.SetOnline(true)

	res, err := e.processor(ProcessorConfig{}).Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Processed())
	assert.Zero(t, e.remote.Calls("ListSecurityEvents"))
}
