package demobank_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/training/demobank"
	"github.com/training/demobank/mocks"
)

func TestValidationMiddleware(t *testing.T) {
	acctID := snowflake.ParseInt64(1834563581361305763)

	t.Run("rejects a sub-cent amount before the engine", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		next := mocks.NewMockService(ctrl)
		svc := demobank.NewValidationMiddleware()(next)

		// no expectations on next: the request must not pass through
		_, err := svc.Deposit(context.Background(), demobank.ChargeReq{
			AcctID: acctID,
			Amount: decimal.RequireFromString("1.005"),
		})
		as.ErrorAs(err, &demobank.ErrBadRequest{})
	})

	t.Run("rejects a same-account transfer before the engine", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		next := mocks.NewMockService(ctrl)
		svc := demobank.NewValidationMiddleware()(next)

		err := svc.Transfer(context.Background(), demobank.TransferReq{
			FromID: acctID,
			ToID:   acctID,
			Amount: decimal.RequireFromString("10.00"),
		})
		as.ErrorAs(err, &demobank.ErrSameAccountTransfer{})
	})

	t.Run("passes a well-formed request through", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		next := mocks.NewMockService(ctrl)
		next.EXPECT().
			Withdraw(gomock.Any(), gomock.AssignableToTypeOf(demobank.ChargeReq{})).
			Return(&demobank.Account{ID: acctID}, nil).
			Times(1)
		svc := demobank.NewValidationMiddleware()(next)

		acct, err := svc.Withdraw(context.Background(), demobank.ChargeReq{
			AcctID: acctID,
			Amount: decimal.RequireFromString("10.00"),
		})
		reqrd.Nil(err)
		as.Equal(acctID, acct.ID)
	})
}

func TestLimitMiddleware(t *testing.T) {
	acctID := snowflake.ParseInt64(1834563581361305763)

	t.Run("sheds load when the operation is saturated", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		next := mocks.NewMockService(ctrl)
		limits := demobank.NewServiceLimits(1)
		svc := demobank.NewLimitMiddleware(limits)(next)

		// occupy the single Deposit slot
		reqrd.Nil(limits.Deposit.Acquire(context.Background(), 1))
		defer limits.Deposit.Release(1)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.Deposit(ctx, demobank.ChargeReq{
			AcctID: acctID,
			Amount: decimal.RequireFromString("10.00"),
		})
		as.ErrorIs(err, context.Canceled)
	})

	t.Run("operations have independent slots", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		next := mocks.NewMockService(ctrl)
		next.EXPECT().
			Withdraw(gomock.Any(), gomock.AssignableToTypeOf(demobank.ChargeReq{})).
			Return(&demobank.Account{ID: acctID}, nil).
			Times(1)
		limits := demobank.NewServiceLimits(1)
		svc := demobank.NewLimitMiddleware(limits)(next)

		// a saturated Deposit does not block Withdraw
		reqrd.Nil(limits.Deposit.Acquire(context.Background(), 1))
		defer limits.Deposit.Release(1)

		acct, err := svc.Withdraw(context.Background(), demobank.ChargeReq{
			AcctID: acctID,
			Amount: decimal.RequireFromString("10.00"),
		})
		reqrd.Nil(err)
		as.Equal(acctID, acct.ID)
	})
}

func TestCircuitBreakMiddleware(t *testing.T) {
	acctID := snowflake.ParseInt64(1834563581361305763)
	settings := gobreaker.Settings{
		Name: "test",
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	}

	t.Run("opens after consecutive infrastructure failures", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		next := mocks.NewMockService(ctrl)
		next.EXPECT().
			Deposit(gomock.Any(), gomock.AssignableToTypeOf(demobank.ChargeReq{})).
			Return(nil, demobank.ErrInternalServer).
			Times(3)
		svc := demobank.NewCircuitBreakMiddleware(demobank.NewServiceBreaker(settings))(next)

		req := demobank.ChargeReq{AcctID: acctID, Amount: decimal.RequireFromString("10.00")}
		for i := 0; i < 3; i++ {
			_, err := svc.Deposit(context.Background(), req)
			as.ErrorIs(err, demobank.ErrInternalServer)
		}
		_, err := svc.Deposit(context.Background(), req)
		as.ErrorIs(err, gobreaker.ErrOpenState)
	})

	t.Run("business rejections never trip the breaker", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		next := mocks.NewMockService(ctrl)
		next.EXPECT().
			Withdraw(gomock.Any(), gomock.AssignableToTypeOf(demobank.ChargeReq{})).
			Return(nil, demobank.ErrInsufficientFunds{
				AcctID:  acctID,
				Balance: decimal.RequireFromString("5.00"),
				Amount:  decimal.RequireFromString("10.00"),
			}).
			Times(10)
		svc := demobank.NewCircuitBreakMiddleware(demobank.NewServiceBreaker(settings))(next)

		req := demobank.ChargeReq{AcctID: acctID, Amount: decimal.RequireFromString("10.00")}
		for i := 0; i < 10; i++ {
			_, err := svc.Withdraw(context.Background(), req)
			as.ErrorAs(err, &demobank.ErrInsufficientFunds{})
		}
	})

	t.Run("breakers are independent per operation", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		next := mocks.NewMockService(ctrl)
		next.EXPECT().
			Deposit(gomock.Any(), gomock.AssignableToTypeOf(demobank.ChargeReq{})).
			Return(nil, demobank.ErrInternalServer).
			Times(3)
		next.EXPECT().
			Withdraw(gomock.Any(), gomock.AssignableToTypeOf(demobank.ChargeReq{})).
			Return(&demobank.Account{ID: acctID}, nil).
			Times(1)
		svc := demobank.NewCircuitBreakMiddleware(demobank.NewServiceBreaker(settings))(next)

		req := demobank.ChargeReq{AcctID: acctID, Amount: decimal.RequireFromString("10.00")}
		for i := 0; i < 3; i++ {
			_, _ = svc.Deposit(context.Background(), req)
		}
		_, err := svc.Deposit(context.Background(), req)
		as.ErrorIs(err, gobreaker.ErrOpenState)

		acct, err := svc.Withdraw(context.Background(), req)
		reqrd.Nil(err)
		as.Equal(acctID, acct.ID)
	})
}
