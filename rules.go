package demobank

import "github.com/shopspring/decimal"

// ValidateWithdrawal decides whether amount may be taken out of acct and
// returns the resulting balance. SAVINGS may never go below zero; CURRENT
// may go down to the negated overdraft limit. It reads acct but never
// mutates it.
func ValidateWithdrawal(acct *Account, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, ErrInvalidAmount{Amount: amount}
	}
	proposed := acct.Balance.Sub(amount)
	if acct.Type == AccountSavings {
		if proposed.IsNegative() {
			return decimal.Decimal{}, ErrInsufficientFunds{
				AcctID:  acct.ID,
				Balance: acct.Balance,
				Amount:  amount,
			}
		}
		return proposed, nil
	}
	limit := acct.OverdraftLimit
	if proposed.LessThan(limit.Neg()) {
		return decimal.Decimal{}, ErrOverdraftExceeded{
			AcctID:  acct.ID,
			Balance: acct.Balance,
			Limit:   limit,
			Amount:  amount,
		}
	}
	return proposed, nil
}

// ValidateDeposit has no rule beyond a strictly positive amount.
func ValidateDeposit(acct *Account, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, ErrInvalidAmount{Amount: amount}
	}
	return acct.Balance.Add(amount), nil
}
