package ledger

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// WalletType partitions an account's balance into sub-ledgers.
type WalletType string

const (
	WalletPersonal   WalletType = "personal"
	WalletFarmLocked WalletType = "farm.locked"
	WalletAds        WalletType = "ads"
)

type PostingSide string

const (
	SideDebit  PostingSide = "DEBIT"
	SideCredit PostingSide = "CREDIT"
)

type CAccountNature string

const (
	NatureDebit  CAccountNature = "DEBIT"
	NatureCredit CAccountNature = "CREDIT"
)

// Platform chart-of-accounts nodes. MINT is the source of tokens entering
// circulation; AIRDROP and FARM_LOCKED are credit-normal treasury buckets.
const (
	CAccountNoMint       = "1000"
	CAccountNoAirdrop    = "2000"
	CAccountNoFarmLocked = "3000"
)

// Transaction is an immutable record of value movement. Corrections are new
// compensating transactions; rows are never updated or deleted.
type Transaction struct {
	ID        string         `gorm:"column:id;primaryKey"`
	Code      string         `gorm:"column:code;index"`
	Data      datatypes.JSON `gorm:"column:data"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`

	Postings []Posting `gorm:"foreignKey:TransactionID"`
}

// Posting is one signed entry within a Transaction. Exactly one of AccountID
// or CAccountNo is set: user-wallet postings carry AccountID+WalletType,
// treasury postings carry CAccountNo.
type Posting struct {
	ID            string          `gorm:"column:id;primaryKey"`
	TransactionID string          `gorm:"column:transaction_id;index"`
	AccountID     string          `gorm:"column:account_id;index"`
	WalletType    WalletType      `gorm:"column:wallet_type"`
	CAccountNo    string          `gorm:"column:caccount_no;index"`
	Side          PostingSide     `gorm:"column:side"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(38,8)"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// CAccount is a chart-of-accounts node. Child holds the node numbers it owns;
// children do not point back.
type CAccount struct {
	No        string                      `gorm:"column:no;primaryKey"`
	Name      string                      `gorm:"column:name"`
	Nature    CAccountNature              `gorm:"column:nature"`
	Parent    string                      `gorm:"column:parent"`
	Child     datatypes.JSONSlice[string] `gorm:"column:child"`
	CreatedAt time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

// Entry is one leg of a transaction under construction.
type Entry struct {
	AccountID  string
	WalletType WalletType
	CAccountNo string
	Side       PostingSide
	Amount     decimal.Decimal
}

func DebitAccount(accountID string, wallet WalletType, amount decimal.Decimal) Entry {
	return Entry{AccountID: accountID, WalletType: wallet, Side: SideDebit, Amount: amount}
}

func CreditAccount(accountID string, wallet WalletType, amount decimal.Decimal) Entry {
	return Entry{AccountID: accountID, WalletType: wallet, Side: SideCredit, Amount: amount}
}

func DebitCAccount(no string, amount decimal.Decimal) Entry {
	return Entry{CAccountNo: no, Side: SideDebit, Amount: amount}
}

func CreditCAccount(no string, amount decimal.Decimal) Entry {
	return Entry{CAccountNo: no, Side: SideCredit, Amount: amount}
}

// GenerateTransactionCode is the fallback when no sequence generator is
// wired (tests, one-off tools).
func GenerateTransactionCode() (string, error) {
	datePart := time.Now().UTC().Format("20060102")

	r := make([]byte, 3)
	if _, err := rand.Read(r); err != nil {
		return "", err
	}
	randomPart := strings.ToUpper(fmt.Sprintf("%x", r))

	return fmt.Sprintf("TXN-%s-%s", datePart, randomPart), nil
}
