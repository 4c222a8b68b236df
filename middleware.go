package demobank

import (
	"context"
	"errors"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
)

type Middleware func(Service) Service

//
// Validation middleware
//

// validationMiddleware rejects obviously bad requests before the engine
// takes any row lock.
type validationMiddleware struct {
	next Service
}

var (
	_ Service = (*validationMiddleware)(nil)
)

func NewValidationMiddleware() Middleware {
	return func(svc Service) Service {
		return &validationMiddleware{
			next: svc,
		}
	}
}

func (v *validationMiddleware) CreateCustomer(ctx context.Context, req CreateCustomerReq) (*Customer, error) {
	return v.next.CreateCustomer(ctx, req)
}

func (v *validationMiddleware) GetCustomer(ctx context.Context, id snowflake.ID) (*Customer, error) {
	return v.next.GetCustomer(ctx, id)
}

func (v *validationMiddleware) GetCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	return v.next.GetCustomerByEmail(ctx, email)
}

func (v *validationMiddleware) UpdatePassword(ctx context.Context, customerID snowflake.ID, password string) error {
	return v.next.UpdatePassword(ctx, customerID, password)
}

func (v *validationMiddleware) CreateAccount(ctx context.Context, req CreateAccountReq) (*Account, error) {
	if req.OpeningBalance.GreaterThan(decimal.Zero) && req.OpeningBalance.Exponent() < -2 {
		return nil, ErrBadRequest{Fields: map[string]string{"openingBalance": "more than two decimal places"}}
	}
	return v.next.CreateAccount(ctx, req)
}

func (v *validationMiddleware) GetAccount(ctx context.Context, id snowflake.ID) (*Account, error) {
	return v.next.GetAccount(ctx, id)
}

func (v *validationMiddleware) GetAccountByNumber(ctx context.Context, number string) (*Account, error) {
	return v.next.GetAccountByNumber(ctx, number)
}

func (v *validationMiddleware) AccountsByCustomer(ctx context.Context, customerID snowflake.ID) ([]Account, error) {
	return v.next.AccountsByCustomer(ctx, customerID)
}

func (v *validationMiddleware) ListAccounts(ctx context.Context) ([]Account, error) {
	return v.next.ListAccounts(ctx)
}

func (v *validationMiddleware) Deposit(ctx context.Context, req ChargeReq) (*Account, error) {
	if err := v.validateCharge(req); err != nil {
		return nil, err
	}
	return v.next.Deposit(ctx, req)
}

func (v *validationMiddleware) Withdraw(ctx context.Context, req ChargeReq) (*Account, error) {
	if err := v.validateCharge(req); err != nil {
		return nil, err
	}
	return v.next.Withdraw(ctx, req)
}

func (v *validationMiddleware) Transfer(ctx context.Context, req TransferReq) error {
	if req.FromID == req.ToID {
		return ErrSameAccountTransfer{ID: req.FromID}
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount{Amount: req.Amount}
	}
	return v.next.Transfer(ctx, req)
}

func (v *validationMiddleware) Transactions(ctx context.Context, acctID snowflake.ID) ([]Entry, error) {
	return v.next.Transactions(ctx, acctID)
}

func (v *validationMiddleware) ListAllEntries(ctx context.Context) ([]Entry, error) {
	return v.next.ListAllEntries(ctx)
}

func (v *validationMiddleware) Statement(ctx context.Context, w io.Writer, acctID snowflake.ID) error {
	return v.next.Statement(ctx, w, acctID)
}

func (v *validationMiddleware) validateCharge(req ChargeReq) error {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount{Amount: req.Amount}
	}
	if req.Amount.Exponent() < -2 {
		return ErrBadRequest{Fields: map[string]string{"amount": "more than two decimal places"}}
	}
	return nil
}

//
// Rate limiting middlewares
//

// limitMiddleware bounds the number of in-flight mutating requests with
// weighted semaphores, one per operation. An acquisition waits until a
// slot frees or the request context ends, so a saturated engine sheds
// load instead of queueing without bound.
type limitMiddleware struct {
	next   Service
	limits *ServiceLimits
}

var (
	_ Service = (*limitMiddleware)(nil)
)

type ServiceLimits struct {
	CreateAccount *semaphore.Weighted
	Deposit       *semaphore.Weighted
	Withdraw      *semaphore.Weighted
	Transfer      *semaphore.Weighted
}

func NewServiceLimits(n int64) *ServiceLimits {
	return &ServiceLimits{
		CreateAccount: semaphore.NewWeighted(n),
		Deposit:       semaphore.NewWeighted(n),
		Withdraw:      semaphore.NewWeighted(n),
		Transfer:      semaphore.NewWeighted(n),
	}
}

func NewLimitMiddleware(limits *ServiceLimits) Middleware {
	return func(next Service) Service {
		return &limitMiddleware{
			next:   next,
			limits: limits,
		}
	}
}

func (l *limitMiddleware) CreateCustomer(ctx context.Context, req CreateCustomerReq) (*Customer, error) {
	return l.next.CreateCustomer(ctx, req)
}

func (l *limitMiddleware) GetCustomer(ctx context.Context, id snowflake.ID) (*Customer, error) {
	return l.next.GetCustomer(ctx, id)
}

func (l *limitMiddleware) GetCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	return l.next.GetCustomerByEmail(ctx, email)
}

func (l *limitMiddleware) UpdatePassword(ctx context.Context, customerID snowflake.ID, password string) error {
	return l.next.UpdatePassword(ctx, customerID, password)
}

func (l *limitMiddleware) CreateAccount(ctx context.Context, req CreateAccountReq) (*Account, error) {
	if err := l.limits.CreateAccount.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.limits.CreateAccount.Release(1)
	return l.next.CreateAccount(ctx, req)
}

func (l *limitMiddleware) GetAccount(ctx context.Context, id snowflake.ID) (*Account, error) {
	return l.next.GetAccount(ctx, id)
}

func (l *limitMiddleware) GetAccountByNumber(ctx context.Context, number string) (*Account, error) {
	return l.next.GetAccountByNumber(ctx, number)
}

func (l *limitMiddleware) AccountsByCustomer(ctx context.Context, customerID snowflake.ID) ([]Account, error) {
	return l.next.AccountsByCustomer(ctx, customerID)
}

func (l *limitMiddleware) ListAccounts(ctx context.Context) ([]Account, error) {
	return l.next.ListAccounts(ctx)
}

func (l *limitMiddleware) Deposit(ctx context.Context, req ChargeReq) (*Account, error) {
	if err := l.limits.Deposit.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.limits.Deposit.Release(1)
	return l.next.Deposit(ctx, req)
}

func (l *limitMiddleware) Withdraw(ctx context.Context, req ChargeReq) (*Account, error) {
	if err := l.limits.Withdraw.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.limits.Withdraw.Release(1)
	return l.next.Withdraw(ctx, req)
}

func (l *limitMiddleware) Transfer(ctx context.Context, req TransferReq) error {
	if err := l.limits.Transfer.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.limits.Transfer.Release(1)
	return l.next.Transfer(ctx, req)
}

func (l *limitMiddleware) Transactions(ctx context.Context, acctID snowflake.ID) ([]Entry, error) {
	return l.next.Transactions(ctx, acctID)
}

func (l *limitMiddleware) ListAllEntries(ctx context.Context) ([]Entry, error) {
	return l.next.ListAllEntries(ctx)
}

func (l *limitMiddleware) Statement(ctx context.Context, w io.Writer, acctID snowflake.ID) error {
	return l.next.Statement(ctx, w, acctID)
}

//
// Circuit breaker middleware
//

type ServiceBreaker struct {
	CreateAccount *gobreaker.TwoStepCircuitBreaker[*Account]
	Deposit       *gobreaker.TwoStepCircuitBreaker[*Account]
	Withdraw      *gobreaker.TwoStepCircuitBreaker[*Account]
	Transfer      *gobreaker.TwoStepCircuitBreaker[interface{}]
}

func NewServiceBreaker(settings gobreaker.Settings) *ServiceBreaker {
	return &ServiceBreaker{
		CreateAccount: gobreaker.NewTwoStepCircuitBreaker[*Account](settings),
		Deposit:       gobreaker.NewTwoStepCircuitBreaker[*Account](settings),
		Withdraw:      gobreaker.NewTwoStepCircuitBreaker[*Account](settings),
		Transfer:      gobreaker.NewTwoStepCircuitBreaker[interface{}](settings),
	}
}

// circuitBreakMiddleware trips an operation open when its storage backend
// keeps failing. Business-rule rejections count as successes; only
// infrastructure errors feed the breaker.
type circuitBreakMiddleware struct {
	next  Service
	brkrs *ServiceBreaker
}

var (
	_ Service = (*circuitBreakMiddleware)(nil)
)

func NewCircuitBreakMiddleware(brkrs *ServiceBreaker) Middleware {
	return func(next Service) Service {
		return &circuitBreakMiddleware{
			next:  next,
			brkrs: brkrs,
		}
	}
}

func (c *circuitBreakMiddleware) CreateCustomer(ctx context.Context, req CreateCustomerReq) (*Customer, error) {
	return c.next.CreateCustomer(ctx, req)
}

func (c *circuitBreakMiddleware) GetCustomer(ctx context.Context, id snowflake.ID) (*Customer, error) {
	return c.next.GetCustomer(ctx, id)
}

func (c *circuitBreakMiddleware) GetCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	return c.next.GetCustomerByEmail(ctx, email)
}

func (c *circuitBreakMiddleware) UpdatePassword(ctx context.Context, customerID snowflake.ID, password string) error {
	return c.next.UpdatePassword(ctx, customerID, password)
}

func (c *circuitBreakMiddleware) CreateAccount(ctx context.Context, req CreateAccountReq) (*Account, error) {
	done, err := c.brkrs.CreateAccount.Allow()
	if err != nil {
		return nil, err
	}
	acct, err := c.next.CreateAccount(ctx, req)
	done(breakerSuccess(err))
	return acct, err
}

func (c *circuitBreakMiddleware) GetAccount(ctx context.Context, id snowflake.ID) (*Account, error) {
	return c.next.GetAccount(ctx, id)
}

func (c *circuitBreakMiddleware) GetAccountByNumber(ctx context.Context, number string) (*Account, error) {
	return c.next.GetAccountByNumber(ctx, number)
}

func (c *circuitBreakMiddleware) AccountsByCustomer(ctx context.Context, customerID snowflake.ID) ([]Account, error) {
	return c.next.AccountsByCustomer(ctx, customerID)
}

func (c *circuitBreakMiddleware) ListAccounts(ctx context.Context) ([]Account, error) {
	return c.next.ListAccounts(ctx)
}

func (c *circuitBreakMiddleware) Deposit(ctx context.Context, req ChargeReq) (*Account, error) {
	done, err := c.brkrs.Deposit.Allow()
	if err != nil {
		return nil, err
	}
	acct, err := c.next.Deposit(ctx, req)
	done(breakerSuccess(err))
	return acct, err
}

func (c *circuitBreakMiddleware) Withdraw(ctx context.Context, req ChargeReq) (*Account, error) {
	done, err := c.brkrs.Withdraw.Allow()
	if err != nil {
		return nil, err
	}
	acct, err := c.next.Withdraw(ctx, req)
	done(breakerSuccess(err))
	return acct, err
}

func (c *circuitBreakMiddleware) Transfer(ctx context.Context, req TransferReq) error {
	done, err := c.brkrs.Transfer.Allow()
	if err != nil {
		return err
	}
	err = c.next.Transfer(ctx, req)
	done(breakerSuccess(err))
	return err
}

func (c *circuitBreakMiddleware) Transactions(ctx context.Context, acctID snowflake.ID) ([]Entry, error) {
	return c.next.Transactions(ctx, acctID)
}

func (c *circuitBreakMiddleware) ListAllEntries(ctx context.Context) ([]Entry, error) {
	return c.next.ListAllEntries(ctx)
}

func (c *circuitBreakMiddleware) Statement(ctx context.Context, w io.Writer, acctID snowflake.ID) error {
	return c.next.Statement(ctx, w, acctID)
}

// breakerSuccess reports whether err should count as a healthy call.
// Business-rule violations are the engine doing its job.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var (
		badReq ErrBadRequest
		invAmt ErrInvalidAmount
		same   ErrSameAccountTransfer
		acctNF ErrAccountNotFound
		custNF ErrCustomerNotFound
		notAct ErrAccountNotActive
		insuf  ErrInsufficientFunds
		overd  ErrOverdraftExceeded
	)
	switch {
	case errors.As(err, &badReq),
		errors.As(err, &invAmt),
		errors.As(err, &same),
		errors.As(err, &acctNF),
		errors.As(err, &custNF),
		errors.As(err, &notAct),
		errors.As(err, &insuf),
		errors.As(err, &overd):
		return true
	}
	return false
}
