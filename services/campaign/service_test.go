package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"castcle-backend/pkg/errutil"
	"castcle-backend/services/account"
	"castcle-backend/services/farming"
	"castcle-backend/services/ledger"
	"castcle-backend/services/queue"
	"castcle-backend/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	db      *gorm.DB
	svc     *Service
	ledgers *ledger.Service
	queues  *queue.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t,
		&Campaign{},
		&ledger.Transaction{}, &ledger.Posting{}, &ledger.CAccount{},
		&account.Account{},
		&queue.Queue{},
		&farming.Content{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ledgers := ledger.NewService(ledger.ServiceParams{DB: db, Node: node})
	queues := queue.NewService(queue.ServiceParams{DB: db, Node: node})
	svc := NewService(ServiceParams{DB: db, Node: node, Ledgers: ledgers, Queues: queues})

	return &fixture{db: db, svc: svc, ledgers: ledgers, queues: queues}
}

func (f *fixture) createAccount(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.db.Create(&account.Account{ID: id, Visibility: account.VisibilityPublish}).Error)
}

func activeWindow() (time.Time, time.Time) {
	now := time.Now()
	return now.Add(-time.Hour), now.Add(time.Hour)
}

func TestCreateCampaignFundsRewardPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledgers.EnsureChart(ctx))

	start, end := activeWindow()
	campaign, err := f.svc.CreateCampaign(ctx, CreateCampaignRequest{
		Type:            TypeVerifyMobile,
		Name:            "Verify mobile airdrop",
		StartDate:       start,
		EndDate:         end,
		TotalRewards:    decimal.NewFromInt(1000),
		RewardsPerClaim: decimal.NewFromInt(10),
		MaxClaims:       1,
	})
	require.NoError(t, err)
	require.Equal(t, StatusScheduled, campaign.Status)
	require.Equal(t, "1000", campaign.RewardBalance.String())

	treasury, err := f.ledgers.GetCAccountBalance(ctx, ledger.CAccountNoAirdrop)
	require.NoError(t, err)
	require.Equal(t, "1000", treasury.String())
}

func TestCreateCampaignRejectsOverlappingType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start, end := activeWindow()
	_, err := f.svc.CreateCampaign(ctx, CreateCampaignRequest{
		Type: TypeVerifyMobile, StartDate: start, EndDate: end,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateCampaign(ctx, CreateCampaignRequest{
		Type: TypeVerifyMobile, StartDate: start.Add(time.Minute), EndDate: end.Add(time.Hour),
	})

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "CAMPAIGN_TYPE_IS_EXIST", be.Message)

	// A different type in the same window is fine, as is the same type in a
	// disjoint window.
	_, err = f.svc.CreateCampaign(ctx, CreateCampaignRequest{
		Type: TypeFriendReferral, StartDate: start, EndDate: end,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateCampaign(ctx, CreateCampaignRequest{
		Type: TypeVerifyMobile, StartDate: end.Add(time.Hour), EndDate: end.Add(2 * time.Hour),
	})
	require.NoError(t, err)
}

func TestUpdateCampaignUnknownID(t *testing.T) {
	f := newFixture(t)

	name := "renamed"
	_, err := f.svc.UpdateCampaign(context.Background(), "missing", UpdateCampaignRequest{Name: &name})

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "CAMPAIGN_NOT_FOUND", be.Message)
}

func TestUpdateCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start, end := activeWindow()
	campaign, err := f.svc.CreateCampaign(ctx, CreateCampaignRequest{
		Type: TypeVerifyMobile, StartDate: start, EndDate: end,
	})
	require.NoError(t, err)

	name := "renamed"
	maxClaims := int64(5)
	updated, err := f.svc.UpdateCampaign(ctx, campaign.ID, UpdateCampaignRequest{
		Name: &name, MaxClaims: &maxClaims,
	})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Name)
	require.Equal(t, int64(5), updated.MaxClaims)
}

func TestClaimBeforeWindowOpens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "acc-1")

	now := time.Now()
	_, err := f.svc.CreateCampaign(ctx, CreateCampaignRequest{
		Type:      TypeVerifyMobile,
		StartDate: now.Add(time.Hour),
		EndDate:   now.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	_, err = f.svc.ClaimCampaignsAirdrop(ctx, "acc-1", TypeVerifyMobile)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "CAMPAIGN_HAS_NOT_STARTED", be.Message)
}

func TestClaimWithDrainedPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "acc-1")

	start, end := activeWindow()
	campaign, err := f.svc.CreateCampaign(ctx, CreateCampaignRequest{
		Type:            TypeVerifyMobile,
		StartDate:       start,
		EndDate:         end,
		TotalRewards:    decimal.NewFromInt(100),
		RewardsPerClaim: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&Campaign{}).
		Where("id = ?", campaign.ID).
		Update("reward_balance", decimal.NewFromInt(5)).Error)

	_, err = f.svc.ClaimCampaignsAirdrop(ctx, "acc-1", TypeVerifyMobile)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "REWARD_IS_NOT_ENOUGH", be.Message)
}

func TestClaimBeyondMaxClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "acc-1")

	start, end := activeWindow()
	_, err := f.svc.CreateCampaign(ctx, CreateCampaignRequest{
		Type:            TypeVerifyMobile,
		StartDate:       start,
		EndDate:         end,
		TotalRewards:    decimal.NewFromInt(100),
		RewardsPerClaim: decimal.NewFromInt(10),
		MaxClaims:       1,
	})
	require.NoError(t, err)

	_, err = f.svc.ClaimCampaignsAirdrop(ctx, "acc-1", TypeVerifyMobile)
	require.NoError(t, err)

	_, err = f.svc.ClaimCampaignsAirdrop(ctx, "acc-1", TypeVerifyMobile)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "REACHED_MAX_CLAIMS", be.Message)
}

func TestClaimUnknownAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start, end := activeWindow()
	_, err := f.svc.CreateCampaign(ctx, CreateCampaignRequest{
		Type:            TypeVerifyMobile,
		StartDate:       start,
		EndDate:         end,
		TotalRewards:    decimal.NewFromInt(100),
		RewardsPerClaim: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	_, err = f.svc.ClaimCampaignsAirdrop(ctx, "missing", TypeVerifyMobile)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "USER_OR_PAGE_NOT_FOUND", be.Message)
}

func TestClaimQueuesWaitingRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "acc-1")

	start, end := activeWindow()
	campaign, err := f.svc.CreateCampaign(ctx, CreateCampaignRequest{
		Type:            TypeVerifyMobile,
		StartDate:       start,
		EndDate:         end,
		TotalRewards:    decimal.NewFromInt(100),
		RewardsPerClaim: decimal.NewFromInt(10),
		MaxClaims:       3,
	})
	require.NoError(t, err)

	record, err := f.svc.ClaimCampaignsAirdrop(ctx, "acc-1", TypeVerifyMobile)
	require.NoError(t, err)
	require.Equal(t, queue.StatusWaiting, record.Status)

	payload := record.Payload.Data()
	require.Equal(t, campaign.ID, payload.CampaignID)
	require.Len(t, payload.To, 1)
	require.Equal(t, "acc-1", payload.To[0].AccountID)
}

func TestContentReachDrainLoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now()
	campaign, err := f.svc.CreateCampaign(ctx, CreateCampaignRequest{
		Type:         TypeContentReach,
		StartDate:    now.Add(-2 * time.Hour),
		EndDate:      now.Add(-time.Hour),
		TotalRewards: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	require.Equal(t, StatusCalculating, campaign.Status)

	require.NoError(t, f.db.Create(&farming.Content{
		ID: "content-1", AuthorAccountID: "author-1", Reach: 30, Visibility: farming.VisibilityPublish,
	}).Error)
	require.NoError(t, f.db.Create(&farming.Content{
		ID: "content-2", AuthorAccountID: "author-2", Reach: 60, Visibility: farming.VisibilityPublish,
	}).Error)
	require.NoError(t, f.db.Create(&farming.Content{
		ID: "content-3", AuthorAccountID: "author-2", Reach: 10, Visibility: farming.VisibilityPublish,
	}).Error)

	require.NoError(t, f.svc.ClaimContentReachAirdrops(ctx))

	records, err := f.queues.CountClaims(ctx, campaign.ID, "author-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), records)

	var queues []*queue.Queue
	require.NoError(t, f.db.Find(&queues).Error)
	require.Len(t, queues, 1)

	payload := queues[0].Payload.Data()
	require.Len(t, payload.To, 2)

	amounts := map[string]string{}
	total := decimal.Zero
	for _, to := range payload.To {
		amounts[to.AccountID] = to.Amount.String()
		total = total.Add(to.Amount)
	}
	require.Equal(t, "30", amounts["author-1"])
	require.Equal(t, "70", amounts["author-2"])
	require.Equal(t, "100", total.String())

	// The campaign is complete, so a second sweep finds nothing to drain.
	require.NoError(t, f.svc.ClaimContentReachAirdrops(ctx))
	require.NoError(t, f.db.Find(&queues).Error)
	require.Len(t, queues, 1)

	fetched, err := f.svc.campaigns.FindOne(ctx, &Campaign{ID: campaign.ID})
	require.NoError(t, err)
	require.Equal(t, StatusComplete, fetched.Status)
}

func TestContentReachWithNoEligibleContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now()
	campaign, err := f.svc.CreateCampaign(ctx, CreateCampaignRequest{
		Type:         TypeContentReach,
		StartDate:    now.Add(-2 * time.Hour),
		EndDate:      now.Add(-time.Hour),
		TotalRewards: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.ClaimContentReachAirdrops(ctx))

	fetched, err := f.svc.campaigns.FindOne(ctx, &Campaign{ID: campaign.ID})
	require.NoError(t, err)
	require.Equal(t, StatusComplete, fetched.Status)

	var count int64
	require.NoError(t, f.db.Model(&queue.Queue{}).Count(&count).Error)
	require.Equal(t, int64(0), count)
}
