package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"castcle-backend/pkg/errutil"
	"castcle-backend/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type finderMock struct {
	existsFn func(ctx context.Context, accountID string) (bool, error)
}

func (m *finderMock) Exists(ctx context.Context, accountID string) (bool, error) {
	return m.existsFn(ctx, accountID)
}

func newTestService(t *testing.T, db *gorm.DB, accounts AccountFinder) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParams{DB: db, Node: node, Accounts: accounts})
}

func TestCreateTransactionRejectsUnbalanced(t *testing.T) {
	db := testutil.NewTestDB(t, &Transaction{}, &Posting{}, &CAccount{})
	svc := newTestService(t, db, nil)

	_, err := svc.CreateTransaction(context.Background(), nil, nil, []Entry{
		DebitCAccount(CAccountNoMint, decimal.NewFromInt(100)),
		CreditAccount("acc-1", WalletPersonal, decimal.NewFromInt(90)),
	})

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "TRANSACTION_NOT_BALANCED", be.Message)
}

func TestCreateTransactionRejectsNonPositiveAmount(t *testing.T) {
	db := testutil.NewTestDB(t, &Transaction{}, &Posting{}, &CAccount{})
	svc := newTestService(t, db, nil)

	_, err := svc.CreateTransaction(context.Background(), nil, nil, []Entry{
		DebitCAccount(CAccountNoMint, decimal.Zero),
		CreditAccount("acc-1", WalletPersonal, decimal.Zero),
	})
	require.Error(t, err)
}

func TestDepositAndGetBalance(t *testing.T) {
	db := testutil.NewTestDB(t, &Transaction{}, &Posting{}, &CAccount{})
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, "acc-1", decimal.NewFromInt(1000))
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, "acc-1", decimal.NewFromInt(250))
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, "acc-1", WalletPersonal)
	require.NoError(t, err)
	require.Equal(t, "1250", balance.String())

	// Empty wallet type sums every wallet of the account.
	total, err := svc.GetBalance(ctx, "acc-1", "")
	require.NoError(t, err)
	require.Equal(t, "1250", total.String())
}

func TestGetBalanceUnknownAccount(t *testing.T) {
	db := testutil.NewTestDB(t, &Transaction{}, &Posting{}, &CAccount{})
	svc := newTestService(t, db, &finderMock{
		existsFn: func(context.Context, string) (bool, error) { return false, nil },
	})

	_, err := svc.GetBalance(context.Background(), "missing", WalletPersonal)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "USER_OR_PAGE_NOT_FOUND", be.Message)
}

func TestGetBalanceIsolatesWallets(t *testing.T) {
	db := testutil.NewTestDB(t, &Transaction{}, &Posting{}, &CAccount{})
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, "acc-1", decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = svc.CreateTransaction(ctx, nil, nil, []Entry{
		DebitAccount("acc-1", WalletPersonal, decimal.NewFromInt(40)),
		CreditAccount("acc-1", WalletFarmLocked, decimal.NewFromInt(40)),
	})
	require.NoError(t, err)

	personal, err := svc.GetBalance(ctx, "acc-1", WalletPersonal)
	require.NoError(t, err)
	require.Equal(t, "60", personal.String())

	locked, err := svc.GetBalance(ctx, "acc-1", WalletFarmLocked)
	require.NoError(t, err)
	require.Equal(t, "40", locked.String())
}

func TestGetCAccountBalanceWalksChildren(t *testing.T) {
	db := testutil.NewTestDB(t, &Transaction{}, &Posting{}, &CAccount{})
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	require.NoError(t, db.Create(&CAccount{
		No: "2000", Name: "AIRDROP", Nature: NatureCredit,
		Child: datatypes.NewJSONSlice([]string{"2100"}),
	}).Error)
	require.NoError(t, db.Create(&CAccount{
		No: "2100", Name: "AIRDROP_PROMO", Nature: NatureCredit, Parent: "2000",
	}).Error)
	require.NoError(t, db.Create(&CAccount{
		No: "1000", Name: "MINT", Nature: NatureDebit,
	}).Error)

	_, err := svc.CreateTransaction(ctx, nil, nil, []Entry{
		DebitCAccount("1000", decimal.NewFromInt(300)),
		CreditCAccount("2000", decimal.NewFromInt(200)),
		CreditCAccount("2100", decimal.NewFromInt(100)),
	})
	require.NoError(t, err)

	// Credit-normal parent aggregates its own and its child's postings.
	airdrop, err := svc.GetCAccountBalance(ctx, "2000")
	require.NoError(t, err)
	require.Equal(t, "300", airdrop.String())

	child, err := svc.GetCAccountBalance(ctx, "2100")
	require.NoError(t, err)
	require.Equal(t, "100", child.String())

	// Debit-normal node mirrors the same movement with the opposite sign
	// convention.
	mint, err := svc.GetCAccountBalance(ctx, "1000")
	require.NoError(t, err)
	require.Equal(t, "300", mint.String())
}

func TestGetCAccountBalanceUnknownNode(t *testing.T) {
	db := testutil.NewTestDB(t, &Transaction{}, &Posting{}, &CAccount{})
	svc := newTestService(t, db, nil)

	_, err := svc.GetCAccountBalance(context.Background(), "9999")

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "CACCOUNT_NOT_FOUND", be.Message)
}

func TestEnsureChartIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t, &Transaction{}, &Posting{}, &CAccount{})
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	require.NoError(t, svc.EnsureChart(ctx))
	require.NoError(t, svc.EnsureChart(ctx))

	var count int64
	require.NoError(t, db.Model(&CAccount{}).Count(&count).Error)
	require.Equal(t, int64(3), count)
}
