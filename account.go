package demobank

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountSavings AccountType = "SAVINGS"
	AccountCurrent AccountType = "CURRENT"
)

// StatusActive is the only status the engine writes through. Any other
// value short-circuits mutating operations with ErrAccountNotActive.
const StatusActive = "ACTIVE"

// Account is a customer account row. Balance and Status are mutated only
// by engine operations holding the account's exclusive row lock.
type Account struct {
	ID             snowflake.ID    `json:"id"`
	CustomerID     snowflake.ID    `json:"customerId"`
	Number         string          `json:"accountNumber"`
	Type           AccountType     `json:"accountType"`
	Balance        decimal.Decimal `json:"balance"`
	OverdraftLimit decimal.Decimal `json:"overdraftLimit"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	Status         string          `json:"status"`
	OpenedAt       time.Time       `json:"openedAt"`
}

type EntryType string

const (
	EntryDeposit     EntryType = "DEPOSIT"
	EntryWithdrawal  EntryType = "WITHDRAWAL"
	EntryTransferOut EntryType = "TRANSFER_OUT"
	EntryTransferIn  EntryType = "TRANSFER_IN"
)

// Entry is one immutable ledger record. Amount is always positive; the
// entry type carries the direction. A transfer writes exactly two entries,
// TRANSFER_OUT on the source and TRANSFER_IN on the destination, in the
// same unit of work.
type Entry struct {
	ID        int64           `json:"id"`
	AccountID snowflake.ID    `json:"accountId"`
	Type      EntryType       `json:"txnType"`
	Amount    decimal.Decimal `json:"amount"`
	Time      time.Time       `json:"txnDate"`
	Note      string          `json:"note"`
}

// Customer owns accounts. Not part of the concurrency-critical core.
type Customer struct {
	ID           snowflake.ID `json:"id"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone"`
	DOB          string       `json:"dob"`
	PasswordHash string       `json:"-"`
	CreatedAt    time.Time    `json:"createdAt"`
}

type CreateCustomerReq struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	DOB       string `json:"dob"`
	Password  string `json:"password"`
}

// CreateAccountReq carries the inputs to open an account. A negative
// OpeningBalance is floored to zero; the floored value never produces an
// opening ledger entry. A blank Number gets a generated one.
type CreateAccountReq struct {
	CustomerID     snowflake.ID    `json:"customerId"`
	Type           AccountType     `json:"accountType"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	OverdraftLimit decimal.Decimal `json:"overdraftLimit"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	Number         string          `json:"accountNumber"`
}

type UpdatePasswordReq struct {
	Password string `json:"password"`
}

type ChargeReq struct {
	AcctID snowflake.ID
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type TransferReq struct {
	FromID snowflake.ID    `json:"fromAccountId"`
	ToID   snowflake.ID    `json:"toAccountId"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}
