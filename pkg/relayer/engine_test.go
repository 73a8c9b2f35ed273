package relayer

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Illuminfti/ika-tensei-relay/pkg/config"
	"github.com/Illuminfti/ika-tensei-relay/pkg/db"
	"github.com/Illuminfti/ika-tensei-relay/pkg/near"
)

func testEngineConfig() *config.Config {
	return &config.Config{
		Origin:   *testOriginConfig(),
		Pipeline: *testPipelineConfig(),
	}
}

func TestEngine_StartResumesInterruptedWorkflows(t *testing.T) {
	store := newMockStore()

	// A crash left one workflow mid-signing and one already finished.
	interrupted := testRecord(db.StatusSigning)
	store.put(interrupted)
	done := testRecord(db.StatusCompleted)
	done.SealHash = "0xdd"
	done.DestinationAsset = "AssetAddr111"
	store.put(done)

	engine := NewEngine(testEngineConfig(), store, &mockOrigin{}, &mockDest{}, &mockSigner{}, zap.NewNop())
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop(context.Background())

	waitFor(t, func() bool {
		return store.status(testHash) == db.StatusCompleted
	}, "interrupted workflow never resumed to completion")
	assert.Equal(t, "AssetAddr111", store.record(done.SealHash).DestinationAsset, "finished record untouched")
}

func TestEngine_StopGivesInFlightWorkTheDrainPeriod(t *testing.T) {
	store := newMockStore()
	store.put(testRecord(db.StatusSigning))

	// A signing session that outlives the shutdown request but fits well
	// inside the drain budget must run to completion, not get cut off.
	signer := &mockSigner{
		signFn: func(ctx context.Context, _ common.Hash) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(300 * time.Millisecond):
				return "ab12", nil
			}
		},
	}

	cfg := testEngineConfig()
	cfg.Pipeline.DrainTimeout = 2 * time.Second

	engine := NewEngine(cfg, store, &mockOrigin{}, &mockDest{}, signer, zap.NewNop())
	require.NoError(t, engine.Start(context.Background()))

	waitFor(t, func() bool { return len(signer.calls()) == 1 }, "signing never started")
	engine.Stop(context.Background())

	assert.Equal(t, db.StatusCompleted, store.status(testHash),
		"in-flight workflow was interrupted despite the drain budget")
}

func TestEngine_StartUsesConfiguredStartSequence(t *testing.T) {
	store := newMockStore()
	cfg := testEngineConfig()
	cfg.Origin.StartSequence = 100

	var seenAfterSeq = make(chan int64, 1)
	origin := &mockOrigin{
		fetchSealEventsFn: func(ctx context.Context, afterSeq int64, limit int) ([]near.SealEvent, error) {
			select {
			case seenAfterSeq <- afterSeq:
			default:
			}
			return nil, nil
		},
	}

	engine := NewEngine(cfg, store, origin, &mockDest{}, &mockSigner{}, zap.NewNop())
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop(context.Background())

	select {
	case seq := <-seenAfterSeq:
		assert.Equal(t, int64(99), seq)
	case <-time.After(2 * time.Second):
		t.Fatal("source never polled")
	}
}

func TestEngine_StartPrefersPersistedCursor(t *testing.T) {
	store := newMockStore()
	require.NoError(t, store.SetCursor(context.Background(), originChain, 500))
	cfg := testEngineConfig()
	cfg.Origin.StartSequence = 100

	var seenAfterSeq = make(chan int64, 1)
	origin := &mockOrigin{
		fetchSealEventsFn: func(ctx context.Context, afterSeq int64, limit int) ([]near.SealEvent, error) {
			select {
			case seenAfterSeq <- afterSeq:
			default:
			}
			return nil, nil
		},
	}

	engine := NewEngine(cfg, store, origin, &mockDest{}, &mockSigner{}, zap.NewNop())
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop(context.Background())

	select {
	case seq := <-seenAfterSeq:
		assert.Equal(t, int64(500), seq)
	case <-time.After(2 * time.Second):
		t.Fatal("source never polled")
	}
}

func TestEngine_Snapshot(t *testing.T) {
	store := newMockStore()
	store.put(testRecord(db.StatusSealed))
	failed := testRecord(db.StatusFailed)
	failed.SealHash = "0xff"
	store.put(failed)

	engine := NewEngine(testEngineConfig(), store, &mockOrigin{}, &mockDest{}, &mockSigner{}, zap.NewNop())
	require.NoError(t, engine.Start(context.Background()))
	defer engine.Stop(context.Background())

	snap, err := engine.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Statuses[db.StatusFailed])
	assert.GreaterOrEqual(t, snap.OriginCursor, int64(-1))
}
