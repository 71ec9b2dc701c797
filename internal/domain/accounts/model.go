// Package accounts holds the Account entity and its balance rules.
package accounts

import (
	"context"
	"regexp"

	"txchain/internal/core/apperror"
	"txchain/internal/core/id"
	"txchain/internal/core/types"
)

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Account is a single-currency balance owned by a user.
// Version is incremented on every update (optimistic locking).
type Account struct {
	ID       id.ID       `db:"id" json:"id"`
	UserID   id.ID       `db:"user_id" json:"userId"`
	Currency string      `db:"currency" json:"currency"`
	Balance  types.Money `db:"balance" json:"balance"`
	Version  int         `db:"version" json:"version"`
}

// NewAccount opens an empty account for userID.
func NewAccount(userID id.ID, currency string) *Account {
	return &Account{
		ID:       id.New(),
		UserID:   userID,
		Currency: currency,
		Balance:  types.Zero(),
		Version:  1,
	}
}

// Validate checks required fields and balance invariants.
func (a *Account) Validate(_ context.Context) error {
	if id.IsNil(a.UserID) {
		return apperror.NewValidation("account owner is required").WithDetail("field", "userId")
	}
	if !currencyRe.MatchString(a.Currency) {
		return apperror.NewValidation("currency must be 3 uppercase letters").
			WithDetail("field", "currency").
			WithDetail("value", a.Currency)
	}
	if a.Balance.IsNegative() {
		return apperror.NewValidation("balance cannot be negative").WithDetail("field", "balance")
	}
	return nil
}

// Deposit adds a positive amount.
func (a *Account) Deposit(amount types.Money) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

// Withdraw removes a positive amount, refusing to go below zero.
func (a *Account) Withdraw(amount types.Money) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if a.Balance.LessThan(amount) {
		return apperror.NewInsufficientFunds(a.ID.String(), amount.String(), a.Balance.String())
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// TransferTo moves amount from a to dst. Both must share a currency.
func (a *Account) TransferTo(dst *Account, amount types.Money) error {
	if a.ID == dst.ID {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "cannot transfer to the same account")
	}
	if a.Currency != dst.Currency {
		return apperror.NewBusinessRule(apperror.CodeCurrencyMismatch, "accounts use different currencies").
			WithDetail("from", a.Currency).
			WithDetail("to", dst.Currency)
	}
	if err := a.Withdraw(amount); err != nil {
		return err
	}
	return dst.Deposit(amount)
}

// checkAmount accepts positive amounts the balance column can store exactly.
func checkAmount(amount types.Money) error {
	if !amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").WithDetail("amount", amount.String())
	}
	if !types.FitsScale(amount) {
		return apperror.NewValidation("amount has too many decimal places").
			WithDetail("amount", amount.String()).
			WithDetail("max_scale", types.MoneyScale)
	}
	return nil
}
