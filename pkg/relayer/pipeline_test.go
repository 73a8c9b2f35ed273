package relayer

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Illuminfti/ika-tensei-relay/pkg/db"
	"github.com/Illuminfti/ika-tensei-relay/pkg/faults"
	"github.com/Illuminfti/ika-tensei-relay/pkg/solana"
)

const testHash = "0xc74baafac39d1cef3d3fa9682e24f13943e26b49a05e03acddf800e182803be0"

func testRecord(status db.Status) *db.SealRecord {
	return &db.SealRecord{
		SealHash:       testHash,
		Status:         status,
		SourceChainID:  4,
		DestChainID:    3,
		SourceContract: []byte("nft.paras.near"),
		TokenID:        []byte("42"),
		Nonce:          7,
		AttestedPubKey: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Recipient:      "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		CollectionName: "Paras",
		TokenURI:       "https://example.com/meta/42.json",
	}
}

func newTestPipeline(store SealStore, origin OriginClient, dest DestinationClient, signer SealSigner) *Pipeline {
	return NewPipeline(store, origin, dest, signer, zap.NewNop())
}

func TestPipeline_RunToCompletion(t *testing.T) {
	store := newMockStore()
	store.put(testRecord(db.StatusSealed))
	origin := &mockOrigin{}
	dest := &mockDest{}
	signer := &mockSigner{}

	p := newTestPipeline(store, origin, dest, signer)
	require.NoError(t, p.Run(context.Background(), testHash))

	rec := store.record(testHash)
	assert.Equal(t, db.StatusCompleted, rec.Status)
	assert.Equal(t, "ab12", rec.Signature)
	assert.Equal(t, "AssetAddr111", rec.DestinationAsset)

	require.Len(t, dest.verifyCalls, 1)
	verify := dest.verifyCalls[0]
	assert.Equal(t, testHash, verify.SealHash)
	assert.Equal(t, "ab12", verify.Signature)
	assert.Equal(t, "nft.paras.near", verify.SourceContract)
	assert.Equal(t, uint16(4), verify.SourceChainID)
	assert.Equal(t, "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", verify.Recipient)

	assert.Equal(t, []string{testHash}, dest.mintCalls)
	assert.Equal(t, []string{testHash}, origin.completedCalls)
	require.Len(t, signer.signCalls, 1)
	assert.Equal(t, testHash, signer.signCalls[0].Hex())
}

func TestPipeline_ResumesMidWorkflow(t *testing.T) {
	rec := testRecord(db.StatusSigned)
	rec.Signature = "cafe"

	store := newMockStore()
	store.put(rec)
	dest := &mockDest{}
	signer := &mockSigner{}

	p := newTestPipeline(store, &mockOrigin{}, dest, signer)
	require.NoError(t, p.Run(context.Background(), testHash))

	assert.Equal(t, db.StatusCompleted, store.status(testHash))
	assert.Empty(t, signer.signCalls, "an already signed seal must not be signed again")
	require.Len(t, dest.verifyCalls, 1)
	assert.Equal(t, "cafe", dest.verifyCalls[0].Signature)
}

func TestPipeline_CompletedIsNoOp(t *testing.T) {
	rec := testRecord(db.StatusCompleted)
	rec.DestinationAsset = "AssetAddr111"

	store := newMockStore()
	store.put(rec)
	dest := &mockDest{}
	origin := &mockOrigin{}

	p := newTestPipeline(store, origin, dest, &mockSigner{})
	require.NoError(t, p.Run(context.Background(), testHash))

	assert.Empty(t, dest.verifyCalls)
	assert.Empty(t, dest.mintCalls)
	assert.Empty(t, origin.completedCalls)
}

func TestPipeline_AlreadyVerifiedIsSuccess(t *testing.T) {
	rec := testRecord(db.StatusVerifying)
	rec.Signature = "cafe"

	store := newMockStore()
	store.put(rec)
	dest := &mockDest{
		verifySealFn: func(ctx context.Context, req *solana.VerifyRequest) error {
			return solana.ErrAlreadyVerified
		},
	}

	p := newTestPipeline(store, &mockOrigin{}, dest, &mockSigner{})
	require.NoError(t, p.Run(context.Background(), testHash))
	assert.Equal(t, db.StatusCompleted, store.status(testHash))
}

func TestPipeline_NoDoubleMintAfterCrash(t *testing.T) {
	// The mint landed on chain but the process died before linking the
	// asset locally. The resumed run must link, not mint again.
	rec := testRecord(db.StatusMinting)
	rec.Signature = "cafe"

	store := newMockStore()
	store.put(rec)
	dest := &mockDest{
		getSealStatusFn: func(ctx context.Context, sealHash string) (*solana.SealStatus, error) {
			return &solana.SealStatus{Verified: true, AssetAddress: "AssetAddr111"}, nil
		},
	}

	p := newTestPipeline(store, &mockOrigin{}, dest, &mockSigner{})
	require.NoError(t, p.Run(context.Background(), testHash))

	assert.Empty(t, dest.mintCalls, "mint must be skipped when the asset already exists")
	got := store.record(testHash)
	assert.Equal(t, db.StatusCompleted, got.Status)
	assert.Equal(t, "AssetAddr111", got.DestinationAsset)
}

func TestPipeline_AlreadyMintedRecoversAsset(t *testing.T) {
	rec := testRecord(db.StatusMinting)
	rec.Signature = "cafe"

	store := newMockStore()
	store.put(rec)

	statusCalls := 0
	dest := &mockDest{
		getSealStatusFn: func(ctx context.Context, sealHash string) (*solana.SealStatus, error) {
			statusCalls++
			if statusCalls == 1 {
				return &solana.SealStatus{Verified: true}, nil
			}
			return &solana.SealStatus{Verified: true, AssetAddress: "AssetAddr111"}, nil
		},
		mintSealedFn: func(ctx context.Context, sealHash, name, uri string) (string, error) {
			return "", solana.ErrAlreadyMinted
		},
	}

	p := newTestPipeline(store, &mockOrigin{}, dest, &mockSigner{})
	require.NoError(t, p.Run(context.Background(), testHash))
	assert.Equal(t, "AssetAddr111", store.record(testHash).DestinationAsset)
}

func TestPipeline_PausedIsRetryable(t *testing.T) {
	rec := testRecord(db.StatusVerifying)
	rec.Signature = "cafe"

	store := newMockStore()
	store.put(rec)
	dest := &mockDest{
		verifySealFn: func(ctx context.Context, req *solana.VerifyRequest) error {
			return faults.Transient("verify", "rebirth program is paused", errors.New("paused"))
		},
	}

	p := newTestPipeline(store, &mockOrigin{}, dest, &mockSigner{})
	err := p.Run(context.Background(), testHash)
	require.Error(t, err)
	assert.True(t, faults.Retryable(err))
	assert.Equal(t, db.StatusVerifying, store.status(testHash), "status must not advance")
}

func TestPipeline_AssetMismatchIsInvariant(t *testing.T) {
	rec := testRecord(db.StatusMinting)
	rec.Signature = "cafe"
	rec.DestinationAsset = "AssetAddr111"

	store := newMockStore()
	store.put(rec)
	dest := &mockDest{
		getSealStatusFn: func(ctx context.Context, sealHash string) (*solana.SealStatus, error) {
			return &solana.SealStatus{Verified: true, AssetAddress: "SomeOtherAsset"}, nil
		},
	}

	p := newTestPipeline(store, &mockOrigin{}, dest, &mockSigner{})
	err := p.Run(context.Background(), testHash)
	require.Error(t, err)
	assert.True(t, faults.Is(err, faults.ClassInvariant))
	assert.False(t, faults.Retryable(err))
}

func TestPipeline_SignerFailurePropagates(t *testing.T) {
	store := newMockStore()
	store.put(testRecord(db.StatusSealed))
	signer := &mockSigner{
		signFn: func(ctx context.Context, sealHash common.Hash) (string, error) {
			return "", faults.Transient("sign", "presign session timed out", errors.New("deadline"))
		},
	}

	p := newTestPipeline(store, &mockOrigin{}, &mockDest{}, signer)
	err := p.Run(context.Background(), testHash)
	require.Error(t, err)
	assert.True(t, faults.Retryable(err))
	assert.Equal(t, db.StatusSigning, store.status(testHash), "record stays in signing for the retry")
}
