package demobank

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

//go:generate mockgen -destination mocks/repository.go -package mocks . Repository,Tx

// Repository is the durable store behind the engine. Methods on Repository
// itself read without row locks; every mutation goes through a Tx.
type Repository interface {
	CreateCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, id snowflake.ID) (*Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	SaveCustomer(ctx context.Context, c *Customer) error

	GetAccount(ctx context.Context, id snowflake.ID) (*Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*Account, error)
	AccountsByCustomer(ctx context.Context, customerID snowflake.ID) ([]Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)

	// ListEntries returns the account's ledger newest first. Entries are
	// write-once, so no lock is taken.
	ListEntries(ctx context.Context, acctID snowflake.ID) ([]Entry, error)
	ListAllEntries(ctx context.Context) ([]Entry, error)

	Begin(ctx context.Context) (Tx, error)
}

// Tx is one unit of work. All writes staged through it become durable
// together on Commit or not at all; row locks taken by AccountForUpdate
// are held until Commit or Rollback. Rollback after Commit is a no-op,
// so `defer tx.Rollback(ctx)` is safe on every path.
type Tx interface {
	// AccountForUpdate blocks until the exclusive lock on the account row
	// is acquired, then returns the current row.
	AccountForUpdate(ctx context.Context, id snowflake.ID) (*Account, error)
	CreateAccount(ctx context.Context, a *Account) error
	SaveAccount(ctx context.Context, a *Account) error
	// AppendEntry stages one ledger entry; the store assigns ID and Time.
	AppendEntry(ctx context.Context, e *Entry) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
