package ledger

import (
	"context"
	"encoding/json"

	"castcle-backend/pkg/db/option"
	"castcle-backend/pkg/errutil"
	"castcle-backend/pkg/money"
	"castcle-backend/pkg/repository"
	"castcle-backend/pkg/sequence"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound          = errutil.NotFound("USER_OR_PAGE_NOT_FOUND", nil)
	ErrCAccountNotFound      = errutil.NotFound("CACCOUNT_NOT_FOUND", nil)
	ErrTransactionUnbalanced = errutil.BadRequest("TRANSACTION_NOT_BALANCED", nil)
)

// AccountFinder reports whether a wallet-holding account exists. Implemented
// by the account service; ledger never walks account rows itself.
type AccountFinder interface {
	Exists(ctx context.Context, accountID string) (bool, error)
}

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	seq  sequence.Generator

	accounts AccountFinder

	transaction repository.Repository[Transaction]
	posting     repository.Repository[Posting]
	caccount    repository.Repository[CAccount]
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Seq      sequence.Generator `optional:"true"`
	Accounts AccountFinder      `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		seq:      p.Seq,
		accounts: p.Accounts,

		transaction: repository.ProvideStore[Transaction](p.DB),
		posting:     repository.ProvideStore[Posting](p.DB),
		caccount:    repository.ProvideStore[CAccount](p.DB),
	}
}

// CreateTransaction appends one immutable transaction with its postings.
// A non-nil tx joins the caller's transaction so the write commits or rolls
// back together with the caller's other mutations. Debits must equal credits.
func (s *Service) CreateTransaction(ctx context.Context, tx *gorm.DB, data any, entries []Entry) (*Transaction, error) {
	if len(entries) == 0 {
		return nil, ErrTransactionUnbalanced
	}

	var debits, credits decimal.Decimal
	for _, e := range entries {
		if !e.Amount.IsPositive() {
			return nil, ErrTransactionUnbalanced
		}
		switch e.Side {
		case SideDebit:
			debits = debits.Add(e.Amount)
		case SideCredit:
			credits = credits.Add(e.Amount)
		default:
			return nil, ErrTransactionUnbalanced
		}
	}
	if !debits.Equal(credits) {
		return nil, ErrTransactionUnbalanced
	}

	code, err := s.nextTransactionCode(ctx)
	if err != nil {
		return nil, err
	}

	var payload datatypes.JSON
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		payload = datatypes.JSON(raw)
	}

	transaction := &Transaction{
		ID:   s.node.Generate().String(),
		Code: code,
		Data: payload,
	}
	for _, e := range entries {
		transaction.Postings = append(transaction.Postings, Posting{
			ID:            s.node.Generate().String(),
			TransactionID: transaction.ID,
			AccountID:     e.AccountID,
			WalletType:    e.WalletType,
			CAccountNo:    e.CAccountNo,
			Side:          e.Side,
			Amount:        money.Round(e.Amount),
		})
	}

	if err := s.transaction.WithTrx(tx).Create(ctx, transaction); err != nil {
		zap.L().Error("failed to create transaction", zap.String("code", code), zap.Error(err))
		return nil, err
	}

	return transaction, nil
}

func (s *Service) nextTransactionCode(ctx context.Context) (string, error) {
	if s.seq != nil {
		return s.seq.NextTransactionCode(ctx)
	}
	return GenerateTransactionCode()
}

// GetBalance re-aggregates the account's postings on every call; nothing is
// cached. An empty walletType sums across all wallets.
func (s *Service) GetBalance(ctx context.Context, accountID string, walletType WalletType) (decimal.Decimal, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if s.accounts != nil {
		exists, err := s.accounts.Exists(ctx, accountID)
		if err != nil {
			return decimal.Zero, err
		}
		if !exists {
			return decimal.Zero, ErrUserNotFound
		}
	}

	return s.sumAccountPostings(ctx, nil, accountID, walletType)
}

// GetBalanceTx is the in-transaction form used by the farming and campaign
// engines: the postings read joins the caller's transaction and takes row
// locks so concurrent stakes against one account serialize at the database.
func (s *Service) GetBalanceTx(ctx context.Context, tx *gorm.DB, accountID string, walletType WalletType) (decimal.Decimal, error) {
	return s.sumAccountPostings(ctx, tx, accountID, walletType)
}

func (s *Service) sumAccountPostings(ctx context.Context, tx *gorm.DB, accountID string, walletType WalletType) (decimal.Decimal, error) {
	var opts []option.QueryOption
	if tx != nil {
		opts = append(opts, option.WithLockingUpdate())
	}

	postings, err := s.posting.WithTrx(tx).Find(ctx, &Posting{
		AccountID:  accountID,
		WalletType: walletType,
	}, opts...)
	if err != nil {
		zap.L().Error("failed to query postings", zap.String("account_id", accountID), zap.Error(err))
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, p := range postings {
		switch p.Side {
		case SideCredit:
			total = total.Add(p.Amount)
		case SideDebit:
			total = total.Sub(p.Amount)
		}
	}

	return money.Round(total), nil
}

// GetCAccountBalance walks the node plus its children, sums debit and credit
// postings separately and applies the node's nature sign convention.
func (s *Service) GetCAccountBalance(ctx context.Context, caccountNo string) (decimal.Decimal, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	caccount, err := s.caccount.FindOne(ctx, &CAccount{No: caccountNo})
	if err != nil {
		return decimal.Zero, err
	}
	if caccount == nil {
		return decimal.Zero, ErrCAccountNotFound
	}

	nos := append([]string{caccount.No}, caccount.Child...)

	var postings []Posting
	if err := s.db.WithContext(ctx).
		Where("caccount_no IN ?", nos).
		Find(&postings).Error; err != nil {
		zap.L().Error("failed to query caccount postings", zap.String("caccount_no", caccountNo), zap.Error(err))
		return decimal.Zero, err
	}

	var allDebit, allCredit decimal.Decimal
	for _, p := range postings {
		switch p.Side {
		case SideDebit:
			allDebit = allDebit.Add(p.Amount)
		case SideCredit:
			allCredit = allCredit.Add(p.Amount)
		}
	}

	if caccount.Nature == NatureDebit {
		return money.Round(allDebit.Sub(allCredit)), nil
	}
	return money.Round(allCredit.Sub(allDebit)), nil
}

// Deposit mints value into an account's personal wallet. Used by top-up flows
// and test fixtures.
func (s *Service) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, errutil.BadRequest("INVALID_AMOUNT", nil)
	}

	return s.CreateTransaction(ctx, nil, map[string]string{"type": "deposit", "account": accountID}, []Entry{
		DebitCAccount(CAccountNoMint, amount),
		CreditAccount(accountID, WalletPersonal, amount),
	})
}

// EnsureChart seeds the platform chart-of-accounts nodes if missing.
func (s *Service) EnsureChart(ctx context.Context) error {
	chart := []CAccount{
		{No: CAccountNoMint, Name: "MINT", Nature: NatureDebit},
		{No: CAccountNoAirdrop, Name: "AIRDROP", Nature: NatureCredit},
		{No: CAccountNoFarmLocked, Name: "FARM_LOCKED", Nature: NatureCredit},
	}

	for _, node := range chart {
		existing, err := s.caccount.FindOne(ctx, &CAccount{No: node.No})
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		node := node
		if err := s.caccount.Create(ctx, &node); err != nil {
			return err
		}
	}

	return nil
}
