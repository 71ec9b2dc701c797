package accounts

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txchain/internal/core/apperror"
	"txchain/internal/core/id"
	"txchain/internal/core/types"
)

func TestAccount_Validate(t *testing.T) {
	ctx := context.Background()

	acc := NewAccount(id.New(), "EUR")
	assert.NoError(t, acc.Validate(ctx))

	acc.Currency = "eur"
	assert.True(t, apperror.HasCode(acc.Validate(ctx), apperror.CodeValidation))

	acc = NewAccount(id.Nil(), "EUR")
	assert.Error(t, acc.Validate(ctx))
}

func TestAccount_WithdrawInsufficient(t *testing.T) {
	acc := NewAccount(id.New(), "USD")
	require.NoError(t, acc.Deposit(types.MustMoney("10")))

	err := acc.Withdraw(types.MustMoney("10.0001"))
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds))
	assert.True(t, acc.Balance.Equal(types.MustMoney("10")))
}

func TestAccount_RejectsNonPositiveAmounts(t *testing.T) {
	acc := NewAccount(id.New(), "USD")
	assert.Error(t, acc.Deposit(types.Zero()))
	assert.Error(t, acc.Withdraw(types.MustMoney("-1")))
}

func TestAccount_TransferTo(t *testing.T) {
	from := NewAccount(id.New(), "USD")
	to := NewAccount(id.New(), "USD")
	require.NoError(t, from.Deposit(types.MustMoney("100")))

	require.NoError(t, from.TransferTo(to, types.MustMoney("40.5")))
	assert.True(t, from.Balance.Equal(types.MustMoney("59.5")))
	assert.True(t, to.Balance.Equal(types.MustMoney("40.5")))

	other := NewAccount(id.New(), "EUR")
	assert.True(t, apperror.HasCode(from.TransferTo(other, types.MustMoney("1")), apperror.CodeCurrencyMismatch))
	assert.True(t, apperror.HasCode(from.TransferTo(from, types.MustMoney("1")), apperror.CodeBusinessRule))
}

func TestAccount_RejectsSubScaleAmounts(t *testing.T) {
	from := NewAccount(id.New(), "EUR")
	to := NewAccount(id.New(), "EUR")
	require.NoError(t, from.Deposit(types.MustMoney("1")))

	tiny := decimal.RequireFromString("0.00004")

	err := from.TransferTo(to, tiny)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.True(t, from.Balance.Equal(types.MustMoney("1")))
	assert.True(t, to.Balance.IsZero())

	assert.True(t, apperror.HasCode(from.Deposit(decimal.RequireFromString("1.00001")), apperror.CodeValidation))
	assert.NoError(t, from.Deposit(decimal.RequireFromString("0.0001")))
}
