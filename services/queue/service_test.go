package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"castcle-backend/pkg/errutil"
	"castcle-backend/services/ledger"
	"castcle-backend/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t, &Queue{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParams{DB: db, Node: node}), db
}

func TestEnqueueClaimAirdropCreatesWaitingRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	record, err := svc.EnqueueClaimAirdrop(ctx, NewClaimAirdropPayload("camp-1", []Recipient{
		{AccountID: "acc-1", WalletType: ledger.WalletPersonal},
	}))
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, record.Status)
	require.Nil(t, record.StartedAt)
	require.Nil(t, record.EndedAt)

	fetched, err := svc.FindByID(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, "camp-1", fetched.Payload.Data().CampaignID)
}

func TestFindByIDUnknown(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.FindByID(context.Background(), "missing")

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "QUEUE_NOT_FOUND", be.Message)
}

func TestFinishStampsEndedAt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	record, err := svc.EnqueueClaimAirdrop(ctx, NewClaimAirdropPayload("camp-1", []Recipient{
		{AccountID: "acc-1"},
	}))
	require.NoError(t, err)

	require.NoError(t, svc.MarkStarted(ctx, record.ID))
	require.NoError(t, svc.Finish(ctx, record.ID, StatusDone))

	fetched, err := svc.FindByID(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDone, fetched.Status)
	require.NotNil(t, fetched.StartedAt)
	require.NotNil(t, fetched.EndedAt)
}

func TestFinishKeepsTerminalStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	record, err := svc.EnqueueClaimAirdrop(ctx, NewClaimAirdropPayload("camp-1", []Recipient{
		{AccountID: "acc-1"},
	}))
	require.NoError(t, err)
	require.NoError(t, svc.Finish(ctx, record.ID, StatusCancelled))

	// A settlement racing the cancellation must not rewrite the outcome.
	err = svc.Finish(ctx, record.ID, StatusDone)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "QUEUE_NOT_WAITING", be.Message)
	require.True(t, IsNotWaiting(err))

	fetched, err := svc.FindByID(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, fetched.Status)
}

func TestMarkStartedRequiresWaiting(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	record, err := svc.EnqueueClaimAirdrop(ctx, NewClaimAirdropPayload("camp-1", []Recipient{
		{AccountID: "acc-1"},
	}))
	require.NoError(t, err)
	require.NoError(t, svc.Finish(ctx, record.ID, StatusCancelled))

	err = svc.MarkStarted(ctx, record.ID)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "QUEUE_NOT_WAITING", be.Message)

	fetched, err := svc.FindByID(ctx, record.ID)
	require.NoError(t, err)
	require.Nil(t, fetched.StartedAt)
}

func TestCountClaimsIgnoresFailed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		record, err := svc.EnqueueClaimAirdrop(ctx, NewClaimAirdropPayload("camp-1", []Recipient{
			{AccountID: "acc-1", Amount: decimal.NewFromInt(10)},
		}))
		require.NoError(t, err)
		if i == 2 {
			require.NoError(t, svc.Finish(ctx, record.ID, StatusFailed))
		}
	}

	// A claim for a different campaign and one for a different account must
	// not count.
	_, err := svc.EnqueueClaimAirdrop(ctx, NewClaimAirdropPayload("camp-2", []Recipient{
		{AccountID: "acc-1"},
	}))
	require.NoError(t, err)
	_, err = svc.EnqueueClaimAirdrop(ctx, NewClaimAirdropPayload("camp-1", []Recipient{
		{AccountID: "acc-2"},
	}))
	require.NoError(t, err)

	count, err := svc.CountClaims(ctx, "camp-1", "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestCancelWaitingByAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	waiting, err := svc.EnqueueClaimAirdrop(ctx, NewClaimAirdropPayload("camp-1", []Recipient{
		{AccountID: "acc-1"},
	}))
	require.NoError(t, err)

	done, err := svc.EnqueueClaimAirdrop(ctx, NewClaimAirdropPayload("camp-1", []Recipient{
		{AccountID: "acc-1"},
	}))
	require.NoError(t, err)
	require.NoError(t, svc.Finish(ctx, done.ID, StatusDone))

	other, err := svc.EnqueueClaimAirdrop(ctx, NewClaimAirdropPayload("camp-1", []Recipient{
		{AccountID: "acc-2"},
	}))
	require.NoError(t, err)

	cancelled, err := svc.CancelWaitingByAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, 1, cancelled)

	fetched, err := svc.FindByID(ctx, waiting.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, fetched.Status)
	require.NotNil(t, fetched.EndedAt)

	untouched, err := svc.FindByID(ctx, other.ID)
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, untouched.Status)
}
