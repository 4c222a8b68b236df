package demobank_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/training/demobank"
)

func TestStatement(t *testing.T) {
	t.Run("renders a PDF for an account with history", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc, cust := newTestBank(tt)
		acct := openAccount(tt, svc, cust, demobank.AccountSavings, "1000.00", "0")
		ctx := context.Background()

		_, err := svc.Deposit(ctx, demobank.ChargeReq{
			AcctID: acct.ID,
			Amount: decimal.RequireFromString("250.00"),
			Note:   "payday",
		})
		reqrd.Nil(err)
		_, err = svc.Withdraw(ctx, demobank.ChargeReq{
			AcctID: acct.ID,
			Amount: decimal.RequireFromString("40.00"),
		})
		reqrd.Nil(err)

		buf := new(bytes.Buffer)
		err = svc.Statement(ctx, buf, acct.ID)
		reqrd.Nil(err)
		as.True(bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
		as.Greater(buf.Len(), 500)
	})

	t.Run("fails for an unknown account", func(tt *testing.T) {
		as := assert.New(tt)
		svc, _ := newTestBank(tt)

		buf := new(bytes.Buffer)
		err := svc.Statement(context.Background(), buf, snowflake.ParseInt64(424242))
		as.ErrorAs(err, &demobank.ErrAccountNotFound{})
		as.Zero(buf.Len())
	})
}
