package demobank

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

//go:generate mockgen -destination mocks/service.go -package mocks . Service

type Service interface {
	CreateCustomer(ctx context.Context, req CreateCustomerReq) (*Customer, error)
	GetCustomer(ctx context.Context, id snowflake.ID) (*Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	UpdatePassword(ctx context.Context, customerID snowflake.ID, password string) error

	CreateAccount(ctx context.Context, req CreateAccountReq) (*Account, error)
	GetAccount(ctx context.Context, id snowflake.ID) (*Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*Account, error)
	AccountsByCustomer(ctx context.Context, customerID snowflake.ID) ([]Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)

	Deposit(ctx context.Context, req ChargeReq) (*Account, error)
	Withdraw(ctx context.Context, req ChargeReq) (*Account, error)
	Transfer(ctx context.Context, req TransferReq) error
	Transactions(ctx context.Context, acctID snowflake.ID) ([]Entry, error)
	ListAllEntries(ctx context.Context) ([]Entry, error)
	Statement(ctx context.Context, w io.Writer, acctID snowflake.ID) error
}

func NewService(repo Repository, nodeID int64, log *zerolog.Logger) (*serviceImpl, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &serviceImpl{
		repo: repo,
		node: node,
		log:  log,
	}, nil
}

type serviceImpl struct {
	repo Repository
	node *snowflake.Node
	log  *zerolog.Logger
}

var (
	_ Service = (*serviceImpl)(nil)
)

func (s *serviceImpl) CreateCustomer(ctx context.Context, req CreateCustomerReq) (*Customer, error) {
	if req.Email == "" || req.FirstName == "" {
		return nil, ErrBadRequest{Fields: map[string]string{
			"email":     "required",
			"firstName": "required",
		}}
	}
	cust := &Customer{
		ID:        s.node.Generate(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		DOB:       req.DOB,
		CreatedAt: time.Now().UTC(),
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			s.log.Err(err).Str("method", "createCustomer").Msg("error hashing password")
			return nil, ErrInternalServer
		}
		cust.PasswordHash = string(hash)
	}
	if err := s.repo.CreateCustomer(ctx, cust); err != nil {
		s.log.Err(err).Str("method", "createCustomer").Msg("error storing customer")
		return nil, err
	}
	return cust, nil
}

func (s *serviceImpl) GetCustomer(ctx context.Context, id snowflake.ID) (*Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *serviceImpl) GetCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	if email == "" {
		return nil, ErrBadRequest{Fields: map[string]string{"email": "required"}}
	}
	return s.repo.GetCustomerByEmail(ctx, email)
}

func (s *serviceImpl) UpdatePassword(ctx context.Context, customerID snowflake.ID, password string) error {
	if password == "" {
		return ErrBadRequest{Fields: map[string]string{"password": "must not be blank"}}
	}
	cust, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Err(err).Str("method", "updatePassword").Msg("error hashing password")
		return ErrInternalServer
	}
	cust.PasswordHash = string(hash)
	return s.repo.SaveCustomer(ctx, cust)
}

// CreateAccount opens an ACTIVE account for an existing customer. A
// strictly positive opening balance is recorded as one DEPOSIT entry noted
// "Opening balance" in the same unit of work as the account row. Negative
// opening balances are floored to zero and leave no ledger entry.
func (s *serviceImpl) CreateAccount(ctx context.Context, req CreateAccountReq) (*Account, error) {
	if req.Type != AccountSavings && req.Type != AccountCurrent {
		return nil, ErrBadRequest{Fields: map[string]string{"accountType": "must be SAVINGS or CURRENT"}}
	}
	if req.OverdraftLimit.IsNegative() {
		return nil, ErrBadRequest{Fields: map[string]string{"overdraftLimit": "must not be negative"}}
	}
	if _, err := s.repo.GetCustomer(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	opening := req.OpeningBalance
	if opening.IsNegative() {
		opening = decimal.Zero
	}
	number := req.Number
	if number == "" {
		number = s.generateAccountNumber()
	}
	acct := &Account{
		ID:             s.node.Generate(),
		CustomerID:     req.CustomerID,
		Number:         number,
		Type:           req.Type,
		Balance:        opening,
		OverdraftLimit: req.OverdraftLimit,
		InterestRate:   req.InterestRate,
		Status:         StatusActive,
		OpenedAt:       time.Now().UTC(),
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		s.log.Err(err).Str("method", "createAccount").Msg("error beginning unit of work")
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err = tx.CreateAccount(ctx, acct); err != nil {
		s.log.Err(err).Str("method", "createAccount").Msg("error storing account")
		return nil, err
	}
	if opening.IsPositive() {
		entry := &Entry{
			AccountID: acct.ID,
			Type:      EntryDeposit,
			Amount:    opening,
			Note:      "Opening balance",
		}
		if err = tx.AppendEntry(ctx, entry); err != nil {
			s.log.Err(err).Str("method", "createAccount").Msg("error appending opening entry")
			return nil, err
		}
	}
	if err = tx.Commit(ctx); err != nil {
		s.log.Err(err).Str("method", "createAccount").Msg("error committing unit of work")
		return nil, err
	}
	return acct, nil
}

func (s *serviceImpl) GetAccount(ctx context.Context, id snowflake.ID) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

func (s *serviceImpl) GetAccountByNumber(ctx context.Context, number string) (*Account, error) {
	if number == "" {
		return nil, ErrBadRequest{Fields: map[string]string{"accountNumber": "required"}}
	}
	return s.repo.GetAccountByNumber(ctx, number)
}

func (s *serviceImpl) AccountsByCustomer(ctx context.Context, customerID snowflake.ID) ([]Account, error) {
	return s.repo.AccountsByCustomer(ctx, customerID)
}

func (s *serviceImpl) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

func (s *serviceImpl) Deposit(ctx context.Context, req ChargeReq) (*Account, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount{Amount: req.Amount}
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		s.log.Err(err).Str("method", "deposit").Msg("error beginning unit of work")
		return nil, err
	}
	defer tx.Rollback(ctx)

	acct, err := tx.AccountForUpdate(ctx, req.AcctID)
	if err != nil {
		return nil, err
	}
	if err = ensureActive(acct); err != nil {
		return nil, err
	}
	newBal, err := ValidateDeposit(acct, req.Amount)
	if err != nil {
		return nil, err
	}
	acct.Balance = newBal
	if err = s.applyCharge(ctx, tx, acct, EntryDeposit, req.Amount, req.Note); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		s.log.Err(err).Str("method", "deposit").Msg("error committing unit of work")
		return nil, err
	}
	return acct, nil
}

func (s *serviceImpl) Withdraw(ctx context.Context, req ChargeReq) (*Account, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount{Amount: req.Amount}
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		s.log.Err(err).Str("method", "withdraw").Msg("error beginning unit of work")
		return nil, err
	}
	defer tx.Rollback(ctx)

	acct, err := tx.AccountForUpdate(ctx, req.AcctID)
	if err != nil {
		return nil, err
	}
	if err = ensureActive(acct); err != nil {
		return nil, err
	}
	newBal, err := ValidateWithdrawal(acct, req.Amount)
	if err != nil {
		return nil, err
	}
	acct.Balance = newBal
	if err = s.applyCharge(ctx, tx, acct, EntryWithdrawal, req.Amount, req.Note); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		s.log.Err(err).Str("method", "withdraw").Msg("error committing unit of work")
		return nil, err
	}
	return acct, nil
}

// Transfer moves amount between two accounts as one atomic unit of work.
// Row locks are acquired in ascending account-id order regardless of
// transfer direction; this total order across all callers is the sole
// deadlock-avoidance mechanism.
func (s *serviceImpl) Transfer(ctx context.Context, req TransferReq) error {
	if req.FromID == req.ToID {
		return ErrSameAccountTransfer{ID: req.FromID}
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount{Amount: req.Amount}
	}

	firstID, secondID := req.FromID, req.ToID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		s.log.Err(err).Str("method", "transfer").Msg("error beginning unit of work")
		return err
	}
	defer tx.Rollback(ctx)

	first, err := tx.AccountForUpdate(ctx, firstID)
	if err != nil {
		return err
	}
	second, err := tx.AccountForUpdate(ctx, secondID)
	if err != nil {
		return err
	}
	from, to := first, second
	if req.FromID != firstID {
		from, to = second, first
	}

	if err = ensureActive(from); err != nil {
		return err
	}
	if err = ensureActive(to); err != nil {
		return err
	}

	newFrom, err := ValidateWithdrawal(from, req.Amount)
	if err != nil {
		return err
	}
	from.Balance = newFrom
	if err = s.applyCharge(ctx, tx, from, EntryTransferOut, req.Amount, req.Note); err != nil {
		return err
	}

	// Destination leg is an unconditional deposit; no rule check.
	to.Balance = to.Balance.Add(req.Amount)
	if err = s.applyCharge(ctx, tx, to, EntryTransferIn, req.Amount, req.Note); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		s.log.Err(err).Str("method", "transfer").Msg("error committing unit of work")
		return err
	}
	return nil
}

func (s *serviceImpl) Transactions(ctx context.Context, acctID snowflake.ID) ([]Entry, error) {
	if _, err := s.repo.GetAccount(ctx, acctID); err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx, acctID)
}

func (s *serviceImpl) ListAllEntries(ctx context.Context) ([]Entry, error) {
	return s.repo.ListAllEntries(ctx)
}

// applyCharge persists a mutated balance together with its ledger entry.
func (s *serviceImpl) applyCharge(ctx context.Context, tx Tx, acct *Account, typ EntryType, amount decimal.Decimal, note string) error {
	if err := tx.SaveAccount(ctx, acct); err != nil {
		s.log.Err(err).Str("account", acct.ID.String()).Msg("error saving account")
		return err
	}
	entry := &Entry{
		AccountID: acct.ID,
		Type:      typ,
		Amount:    amount,
		Note:      note,
	}
	if err := tx.AppendEntry(ctx, entry); err != nil {
		s.log.Err(err).Str("account", acct.ID.String()).Msg("error appending ledger entry")
		return err
	}
	return nil
}

func ensureActive(acct *Account) error {
	if acct.Status != StatusActive {
		return ErrAccountNotActive{ID: acct.ID, Status: acct.Status}
	}
	return nil
}

func (s *serviceImpl) generateAccountNumber() string {
	return "AC" + s.node.Generate().String()
}
