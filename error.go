package demobank

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInternalServer = errors.New("internal server error")
)

// ErrBadRequest covers malformed input at the request boundary.
type ErrBadRequest struct {
	Fields map[string]string `json:"fields"`
}

func (e ErrBadRequest) Error() string {
	return fmt.Sprintf("missing/invalid params: %v", e.Fields)
}

type ErrInvalidAmount struct {
	Amount decimal.Decimal `json:"amount"`
}

func (e ErrInvalidAmount) Error() string {
	return fmt.Sprintf("amount must be positive: %s", e.Amount)
}

type ErrAccountNotFound struct {
	ID snowflake.ID `json:"id"`
}

func (e ErrAccountNotFound) Error() string {
	return fmt.Sprintf("account not found: %s", e.ID)
}

type ErrCustomerNotFound struct {
	ID    snowflake.ID `json:"id"`
	Email string       `json:"email,omitempty"`
}

func (e ErrCustomerNotFound) Error() string {
	if e.Email != "" {
		return fmt.Sprintf("customer not found: %s", e.Email)
	}
	return fmt.Sprintf("customer not found: %s", e.ID)
}

type ErrAccountNotActive struct {
	ID     snowflake.ID `json:"id"`
	Status string       `json:"status"`
}

func (e ErrAccountNotActive) Error() string {
	return fmt.Sprintf("account %s not active: %s", e.ID, e.Status)
}

type ErrInsufficientFunds struct {
	AcctID  snowflake.ID    `json:"accountId"`
	Balance decimal.Decimal `json:"balance"`
	Amount  decimal.Decimal `json:"amount"`
}

func (e ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds in account %s: balance %s, requested %s",
		e.AcctID, e.Balance, e.Amount)
}

type ErrOverdraftExceeded struct {
	AcctID  snowflake.ID    `json:"accountId"`
	Balance decimal.Decimal `json:"balance"`
	Limit   decimal.Decimal `json:"overdraftLimit"`
	Amount  decimal.Decimal `json:"amount"`
}

func (e ErrOverdraftExceeded) Error() string {
	return fmt.Sprintf("overdraft limit exceeded on account %s: balance %s, limit %s, requested %s",
		e.AcctID, e.Balance, e.Limit, e.Amount)
}

type ErrSameAccountTransfer struct {
	ID snowflake.ID `json:"id"`
}

func (e ErrSameAccountTransfer) Error() string {
	return fmt.Sprintf("cannot transfer account %s to itself", e.ID)
}
