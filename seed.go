package demobank

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	seedEmail    = "test@example.com"
	seedPassword = "Password123!"
)

// Seeder provisions demo data through the Service so that every seeded
// balance arrives with its opening ledger entry.
type Seeder struct {
	Svc Service
	Log *zerolog.Logger
}

// SeedTestUser creates the well-known test customer and, when
// demoAccounts is set, a funded SAVINGS and CURRENT account for them.
// Already-seeded stores are left untouched.
func (s *Seeder) SeedTestUser(ctx context.Context, demoAccounts bool) error {
	cust, err := s.Svc.GetCustomerByEmail(ctx, seedEmail)
	if err != nil {
		var nf ErrCustomerNotFound
		if !errors.As(err, &nf) {
			return err
		}
		cust, err = s.Svc.CreateCustomer(ctx, CreateCustomerReq{
			FirstName: "Test",
			LastName:  "User",
			Email:     seedEmail,
			Phone:     "1234567890",
			DOB:       "1990-01-01",
			Password:  seedPassword,
		})
		if err != nil {
			return err
		}
		s.Log.Info().
			Str("email", cust.Email).
			Str("id", cust.ID.String()).
			Msg("seeded test user")
	}

	if !demoAccounts {
		return nil
	}
	accts, err := s.Svc.AccountsByCustomer(ctx, cust.ID)
	if err != nil {
		return err
	}
	if len(accts) > 0 {
		return nil
	}

	savings, err := s.Svc.CreateAccount(ctx, CreateAccountReq{
		CustomerID:     cust.ID,
		Type:           AccountSavings,
		OpeningBalance: decimal.RequireFromString("1000.00"),
		InterestRate:   decimal.RequireFromString("0.0250"),
	})
	if err != nil {
		return err
	}
	current, err := s.Svc.CreateAccount(ctx, CreateAccountReq{
		CustomerID:     cust.ID,
		Type:           AccountCurrent,
		OpeningBalance: decimal.RequireFromString("250.00"),
		OverdraftLimit: decimal.RequireFromString("500.00"),
	})
	if err != nil {
		return err
	}
	s.Log.Info().
		Str("savings", savings.ID.String()).
		Str("current", current.ID.String()).
		Msg("seeded demo accounts for test user")
	return nil
}
