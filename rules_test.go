package demobank_test

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/training/demobank"
)

func TestValidateWithdrawal(t *testing.T) {
	acctID := snowflake.ParseInt64(7241301734201495552)

	t.Run("rejects a non-positive amount", func(tt *testing.T) {
		as := assert.New(tt)
		acct := &demobank.Account{
			ID:      acctID,
			Type:    demobank.AccountSavings,
			Balance: decimal.RequireFromString("100.00"),
		}
		for _, amt := range []string{"0", "-1", "-0.01"} {
			_, err := demobank.ValidateWithdrawal(acct, decimal.RequireFromString(amt))
			as.ErrorAs(err, &demobank.ErrInvalidAmount{})
		}
	})

	t.Run("savings may not go negative", func(tt *testing.T) {
		as := assert.New(tt)
		acct := &demobank.Account{
			ID:      acctID,
			Type:    demobank.AccountSavings,
			Balance: decimal.RequireFromString("50.00"),
		}
		proposed, err := demobank.ValidateWithdrawal(acct, decimal.RequireFromString("50.00"))
		as.Nil(err)
		as.True(proposed.IsZero())

		_, err = demobank.ValidateWithdrawal(acct, decimal.RequireFromString("50.01"))
		as.ErrorAs(err, &demobank.ErrInsufficientFunds{})
	})

	t.Run("current may draw down to the negated overdraft limit", func(tt *testing.T) {
		as := assert.New(tt)
		acct := &demobank.Account{
			ID:             acctID,
			Type:           demobank.AccountCurrent,
			Balance:        decimal.RequireFromString("0.00"),
			OverdraftLimit: decimal.RequireFromString("100.00"),
		}
		proposed, err := demobank.ValidateWithdrawal(acct, decimal.RequireFromString("100.00"))
		as.Nil(err)
		as.True(proposed.Equal(decimal.RequireFromString("-100.00")))

		_, err = demobank.ValidateWithdrawal(acct, decimal.RequireFromString("100.01"))
		as.ErrorAs(err, &demobank.ErrOverdraftExceeded{})
	})

	t.Run("current with no limit behaves like a zero limit", func(tt *testing.T) {
		as := assert.New(tt)
		acct := &demobank.Account{
			ID:      acctID,
			Type:    demobank.AccountCurrent,
			Balance: decimal.RequireFromString("10.00"),
		}
		_, err := demobank.ValidateWithdrawal(acct, decimal.RequireFromString("10.00"))
		as.Nil(err)
		_, err = demobank.ValidateWithdrawal(acct, decimal.RequireFromString("10.01"))
		as.ErrorAs(err, &demobank.ErrOverdraftExceeded{})
	})
}

func TestValidateDeposit(t *testing.T) {
	as := assert.New(t)
	acct := &demobank.Account{
		Type:    demobank.AccountSavings,
		Balance: decimal.RequireFromString("50.00"),
	}
	proposed, err := demobank.ValidateDeposit(acct, decimal.RequireFromString("25.00"))
	as.Nil(err)
	as.True(proposed.Equal(decimal.RequireFromString("75.00")))

	_, err = demobank.ValidateDeposit(acct, decimal.Zero)
	as.ErrorAs(err, &demobank.ErrInvalidAmount{})
}
