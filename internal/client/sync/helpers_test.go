package sync

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/minesync/internal/client/queue"
	"github.com/iudanet/minesync/internal/client/remote/memstore"
	"github.com/iudanet/minesync/internal/client/security"
	"github.com/iudanet/minesync/internal/client/storage/boltdb"
	"github.com/iudanet/minesync/internal/clock"
	"github.com/iudanet/minesync/internal/crypto"
	"github.com/iudanet/minesync/internal/models"
	"github.com/iudanet/minesync/internal/ratelimit"
	"github.com/iudanet/minesync/internal/validation"
)

const testUser = "player_1"

var testSecret = []byte("sync-test-secret-0123456789")

type env struct {
	local    *boltdb.Storage
	remote   *memstore.Store
	signer   crypto.Signer
	recorder *security.Recorder
	limiter  *ratelimit.Limiter
	clock    *clock.Fake
	logger   *slog.Logger
	queue    *queue.Queue
	state    *StateTracker
}

func newEnv(t *testing.T) *env {
	t.Helper()

	local, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	signer, err := crypto.NewHMACSigner(testSecret)
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	remote := memstore.New()
	remote.MaxBalanceChange = validation.DefaultLimits().MaxBalanceChange
	remote.Now = clk.Now

	e := &env{
		local:    local,
		remote:   remote,
		signer:   signer,
		recorder: security.NewRecorder(remote, logger),
		limiter:  ratelimit.New(1000, time.Minute, clk, logger),
		clock:    clk,
		logger:   logger,
	}
	e.queue = e.newQueue(t, signer)

	e.state, err = NewStateTracker(context.Background(), testUser, local, true, logger)
	require.NoError(t, err)

	return e
}

func (e *env) newQueue(t *testing.T, signer crypto.Signer) *queue.Queue {
	t.Helper()

	q, err := queue.New(context.Background(), testUser,
		queue.Config{Limits: validation.DefaultLimits(), MaxQueueSize: 100},
		e.local, e.limiter, signer, e.recorder, e.clock, e.logger)
	require.NoError(t, err)
	return q
}

func (e *env) processor(cfg ProcessorConfig) *Processor {
	return NewProcessor(testUser, cfg, e.queue, e.remote, e.signer, e.recorder, e.state, e.clock, e.logger)
}

func (e *env) session(t *testing.T, cfg SessionConfig) *Session {
	t.Helper()

	s, err := NewSession(context.Background(), testUser, cfg, SessionDeps{
		Queue:    e.queue,
		Remote:   e.remote,
		Local:    e.local,
		Signer:   e.signer,
		Recorder: e.recorder,
		Limiter:  e.limiter,
		Clock:    e.clock,
		Logger:   e.logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func (e *env) enqueue(t *testing.T, opType models.OperationType, payload any) string {
	t.Helper()

	res, err := e.queue.Enqueue(context.Background(), queue.Draft{Type: opType, Payload: payload})
	require.NoError(t, err)
	return res.ID
}

func synergy(v float64) models.SynergyUpdatePayload {
	return models.SynergyUpdatePayload{Synergy: models.Synergy{"miners": v}}
}
