package demobank_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/training/demobank"
	"github.com/training/demobank/mocks"
)

func TestNewService(t *testing.T) {
	t.Run("returns an error on an out-of-range snowflake node", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		log := zerolog.Nop()
		_, err := demobank.NewService(repo, 1<<20, &log)
		as.NotNil(err)
	})
}

func TestServiceDeposit(t *testing.T) {
	t.Run("rejects a non-positive amount before any lock is taken", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		log := zerolog.Nop()
		svc, err := demobank.NewService(repo, 1, &log)
		reqrd.Nil(err)

		// no expectations on repo: Begin must not be called
		_, err = svc.Deposit(context.Background(), demobank.ChargeReq{
			AcctID: snowflake.ParseInt64(7241407009730334720),
			Amount: decimal.Zero,
		})
		as.ErrorAs(err, &demobank.ErrInvalidAmount{})
	})

	t.Run("persists balance and entry in one unit of work", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		tx := mocks.NewMockTx(ctrl)
		log := zerolog.Nop()
		svc, err := demobank.NewService(repo, 1, &log)
		reqrd.Nil(err)

		acctID := snowflake.ParseInt64(7241407009730334720)
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().
			AccountForUpdate(gomock.Any(), acctID).
			Return(&demobank.Account{
				ID:      acctID,
				Type:    demobank.AccountSavings,
				Balance: decimal.RequireFromString("50.00"),
				Status:  demobank.StatusActive,
			}, nil)
		tx.EXPECT().
			SaveAccount(gomock.Any(), gomock.AssignableToTypeOf(&demobank.Account{})).
			DoAndReturn(func(_ context.Context, a *demobank.Account) error {
				as.True(a.Balance.Equal(decimal.RequireFromString("75.00")))
				return nil
			})
		tx.EXPECT().
			AppendEntry(gomock.Any(), gomock.AssignableToTypeOf(&demobank.Entry{})).
			DoAndReturn(func(_ context.Context, e *demobank.Entry) error {
				as.Equal(demobank.EntryDeposit, e.Type)
				as.True(e.Amount.Equal(decimal.RequireFromString("25.00")))
				return nil
			})
		tx.EXPECT().Commit(gomock.Any()).Return(nil)
		tx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()

		acct, err := svc.Deposit(context.Background(), demobank.ChargeReq{
			AcctID: acctID,
			Amount: decimal.RequireFromString("25.00"),
		})
		reqrd.Nil(err)
		as.True(acct.Balance.Equal(decimal.RequireFromString("75.00")))
	})
}

func TestServiceWithdraw(t *testing.T) {
	t.Run("rule rejection rolls back with no writes", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		tx := mocks.NewMockTx(ctrl)
		log := zerolog.Nop()
		svc, err := demobank.NewService(repo, 1, &log)
		reqrd.Nil(err)

		acctID := snowflake.ParseInt64(7241407009730334720)
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().
			AccountForUpdate(gomock.Any(), acctID).
			Return(&demobank.Account{
				ID:      acctID,
				Type:    demobank.AccountSavings,
				Balance: decimal.RequireFromString("5.00"),
				Status:  demobank.StatusActive,
			}, nil)
		// no SaveAccount, no AppendEntry, no Commit
		tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		_, err = svc.Withdraw(context.Background(), demobank.ChargeReq{
			AcctID: acctID,
			Amount: decimal.RequireFromString("10.00"),
		})
		as.ErrorAs(err, &demobank.ErrInsufficientFunds{})
	})

	t.Run("refuses a non-ACTIVE account", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		tx := mocks.NewMockTx(ctrl)
		log := zerolog.Nop()
		svc, err := demobank.NewService(repo, 1, &log)
		reqrd.Nil(err)

		acctID := snowflake.ParseInt64(7241407009730334720)
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().
			AccountForUpdate(gomock.Any(), acctID).
			Return(&demobank.Account{
				ID:      acctID,
				Type:    demobank.AccountSavings,
				Balance: decimal.RequireFromString("100.00"),
				Status:  "CLOSED",
			}, nil)
		tx.EXPECT().Rollback(gomock.Any()).Return(nil)

		_, err = svc.Withdraw(context.Background(), demobank.ChargeReq{
			AcctID: acctID,
			Amount: decimal.RequireFromString("10.00"),
		})
		as.ErrorAs(err, &demobank.ErrAccountNotActive{})
	})
}

func TestServiceTransfer(t *testing.T) {
	t.Run("locks rows in ascending id order regardless of direction", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		tx := mocks.NewMockTx(ctrl)
		log := zerolog.Nop()
		svc, err := demobank.NewService(repo, 1, &log)
		reqrd.Nil(err)

		lowID := snowflake.ParseInt64(7241301734201495552)
		highID := snowflake.ParseInt64(7241407009730334720)
		low := &demobank.Account{
			ID:      lowID,
			Type:    demobank.AccountCurrent,
			Balance: decimal.RequireFromString("0.00"),
			Status:  demobank.StatusActive,
		}
		high := &demobank.Account{
			ID:      highID,
			Type:    demobank.AccountSavings,
			Balance: decimal.RequireFromString("100.00"),
			Status:  demobank.StatusActive,
		}

		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		gomock.InOrder(
			tx.EXPECT().AccountForUpdate(gomock.Any(), lowID).Return(low, nil),
			tx.EXPECT().AccountForUpdate(gomock.Any(), highID).Return(high, nil),
		)
		tx.EXPECT().SaveAccount(gomock.Any(), gomock.AssignableToTypeOf(&demobank.Account{})).Return(nil).Times(2)
		tx.EXPECT().
			AppendEntry(gomock.Any(), gomock.AssignableToTypeOf(&demobank.Entry{})).
			DoAndReturn(func(_ context.Context, e *demobank.Entry) error {
				as.Equal(demobank.EntryTransferOut, e.Type)
				as.Equal(highID, e.AccountID)
				return nil
			})
		tx.EXPECT().
			AppendEntry(gomock.Any(), gomock.AssignableToTypeOf(&demobank.Entry{})).
			DoAndReturn(func(_ context.Context, e *demobank.Entry) error {
				as.Equal(demobank.EntryTransferIn, e.Type)
				as.Equal(lowID, e.AccountID)
				return nil
			})
		tx.EXPECT().Commit(gomock.Any()).Return(nil)
		tx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()

		// source has the higher id: the lower-id destination still locks first
		err = svc.Transfer(context.Background(), demobank.TransferReq{
			FromID: highID,
			ToID:   lowID,
			Amount: decimal.RequireFromString("40.00"),
		})
		reqrd.Nil(err)
		as.True(high.Balance.Equal(decimal.RequireFromString("60.00")))
		as.True(low.Balance.Equal(decimal.RequireFromString("40.00")))
	})

	t.Run("rejects same-account transfer before Begin", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		log := zerolog.Nop()
		svc, err := demobank.NewService(repo, 1, &log)
		reqrd.Nil(err)

		id := snowflake.ParseInt64(7241407009730334720)
		err = svc.Transfer(context.Background(), demobank.TransferReq{
			FromID: id,
			ToID:   id,
			Amount: decimal.RequireFromString("10.00"),
		})
		as.ErrorAs(err, &demobank.ErrSameAccountTransfer{})
	})
}

func TestServiceCreateAccount(t *testing.T) {
	t.Run("floors a negative opening balance to zero without an entry", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		tx := mocks.NewMockTx(ctrl)
		log := zerolog.Nop()
		svc, err := demobank.NewService(repo, 1, &log)
		reqrd.Nil(err)

		custID := snowflake.ParseInt64(7241301734201495552)
		repo.EXPECT().
			GetCustomer(gomock.Any(), custID).
			Return(&demobank.Customer{ID: custID}, nil)
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().
			CreateAccount(gomock.Any(), gomock.AssignableToTypeOf(&demobank.Account{})).
			DoAndReturn(func(_ context.Context, a *demobank.Account) error {
				as.True(a.Balance.IsZero())
				as.Equal(demobank.StatusActive, a.Status)
				as.NotEmpty(a.Number)
				return nil
			})
		// no AppendEntry for a zero balance
		tx.EXPECT().Commit(gomock.Any()).Return(nil)
		tx.EXPECT().Rollback(gomock.Any()).Return(nil).AnyTimes()

		acct, err := svc.CreateAccount(context.Background(), demobank.CreateAccountReq{
			CustomerID:     custID,
			Type:           demobank.AccountSavings,
			OpeningBalance: decimal.RequireFromString("-10.00"),
		})
		reqrd.Nil(err)
		as.True(acct.Balance.IsZero())
	})

	t.Run("fails when the customer is unknown", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		log := zerolog.Nop()
		svc, err := demobank.NewService(repo, 1, &log)
		reqrd.Nil(err)

		custID := snowflake.ParseInt64(7241301734201495552)
		repo.EXPECT().
			GetCustomer(gomock.Any(), custID).
			Return(nil, demobank.ErrCustomerNotFound{ID: custID})

		_, err = svc.CreateAccount(context.Background(), demobank.CreateAccountReq{
			CustomerID: custID,
			Type:       demobank.AccountCurrent,
		})
		as.ErrorAs(err, &demobank.ErrCustomerNotFound{})
	})
}
