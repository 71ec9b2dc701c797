package service_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txchain/internal/core/apperror"
	"txchain/internal/core/id"
	"txchain/internal/core/types"
	"txchain/internal/domain/events"
	"txchain/internal/service"
)

var accountCols = []string{"id", "user_id", "currency", "balance", "version"}

func newLedger(t *testing.T) (*service.Ledger, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return service.NewLedger(service.Config{Pool: mock}), mock
}

func expectBegin(mock pgxmock.PgxPoolIface, mode pgx.TxAccessMode) {
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: mode})
	mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(pgxmock.NewResult("SET", 0))
}

func expectUserInsert(mock pgxmock.PgxPoolIface, userID id.ID, name string) *pgxmock.ExpectedQuery {
	return mock.ExpectQuery("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), name).
		WillReturnRows(mock.NewRows([]string{"id", "name"}).AddRow(userID.String(), name))
}

func expectAccountInsert(mock pgxmock.PgxPoolIface, accountID, userID id.ID, currency, balance string) *pgxmock.ExpectedQuery {
	return mock.ExpectQuery("INSERT INTO accounts").
		WithArgs(pgxmock.AnyArg(), userID, currency, pgxmock.AnyArg(), 1).
		WillReturnRows(mock.NewRows(accountCols).AddRow(accountID.String(), userID.String(), currency, balance, 1))
}

// squirrel.Eq turns ids into their driver value, so WHERE arguments are strings.
func expectLock(mock pgxmock.PgxPoolIface, accountID id.ID, currency, balance string, version int) {
	mock.ExpectQuery(`FROM accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs(accountID.String()).
		WillReturnRows(mock.NewRows(accountCols).AddRow(accountID.String(), id.New().String(), currency, balance, version))
}

func TestLedger_Onboard(t *testing.T) {
	t.Run("Should write user, account and events in one transaction", func(t *testing.T) {
		ledger, mock := newLedger(t)
		userID, accountID := id.New(), id.New()

		expectBegin(mock, pgx.ReadWrite)
		expectUserInsert(mock, userID, "Ada")
		expectAccountInsert(mock, accountID, userID, "EUR", "100")
		batch := mock.ExpectBatch()
		batch.ExpectExec("INSERT INTO events").
			WithArgs(pgxmock.AnyArg(), events.UserOnboarded, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		batch.ExpectExec("INSERT INTO events").
			WithArgs(pgxmock.AnyArg(), events.FundsDeposited, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		res, err := ledger.Onboard(context.Background(), service.OnboardInput{
			Name:     "Ada",
			Currency: "EUR",
			Deposit:  types.MustMoney("100"),
		})

		require.NoError(t, err)
		assert.Equal(t, userID, res.User.ID)
		assert.Equal(t, accountID, res.Account.ID)
		assert.Equal(t, "100", res.Account.Balance.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should roll back the user when the account cannot be opened", func(t *testing.T) {
		ledger, mock := newLedger(t)
		userID := id.New()

		expectBegin(mock, pgx.ReadWrite)
		expectUserInsert(mock, userID, "Ada")
		mock.ExpectQuery("INSERT INTO accounts").
			WithArgs(pgxmock.AnyArg(), userID, "EUR", pgxmock.AnyArg(), 1).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_user_id_currency_key"})
		mock.ExpectRollback()

		_, err := ledger.Onboard(context.Background(), service.OnboardInput{Name: "Ada", Currency: "EUR"})

		assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should roll back user and account when events fail", func(t *testing.T) {
		ledger, mock := newLedger(t)
		userID, accountID := id.New(), id.New()

		expectBegin(mock, pgx.ReadWrite)
		expectUserInsert(mock, userID, "Ada")
		expectAccountInsert(mock, accountID, userID, "EUR", "0")
		mock.ExpectBatch().ExpectExec("INSERT INTO events").
			WithArgs(pgxmock.AnyArg(), events.UserOnboarded, pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "events_payload_check"})
		mock.ExpectRollback()

		_, err := ledger.Onboard(context.Background(), service.OnboardInput{Name: "Ada", Currency: "EUR"})

		assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
		assert.ErrorContains(t, err, "record onboarding events")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should reject a negative deposit before writing", func(t *testing.T) {
		ledger, mock := newLedger(t)

		expectBegin(mock, pgx.ReadWrite)
		mock.ExpectRollback()

		_, err := ledger.Onboard(context.Background(), service.OnboardInput{
			Name:     "Ada",
			Currency: "EUR",
			Deposit:  types.MustMoney("-1"),
		})

		assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedger_OnboardAll_SkipsFailedInputs(t *testing.T) {
	ledger, mock := newLedger(t)
	userID, accountID := id.New(), id.New()

	expectBegin(mock, pgx.ReadWrite)
	// first input: savepoint released
	mock.ExpectBegin()
	expectUserInsert(mock, userID, "Ada")
	expectAccountInsert(mock, accountID, userID, "USD", "0")
	mock.ExpectBatch().ExpectExec("INSERT INTO events").
		WithArgs(pgxmock.AnyArg(), events.UserOnboarded, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	// second input: invalid name, savepoint rolled back
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectCommit()

	outcomes, err := ledger.OnboardAll(context.Background(), []service.OnboardInput{
		{Name: "Ada", Currency: "USD"},
		{Name: "", Currency: "USD"},
	})

	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, userID, outcomes[0].Result.User.ID)
	assert.Nil(t, outcomes[1].Result)
	assert.True(t, apperror.HasCode(outcomes[1].Err, apperror.CodeValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_Transfer(t *testing.T) {
	low := id.MustParse("00000000-0000-7000-8000-000000000001")
	high := id.MustParse("00000000-0000-7000-8000-000000000002")
	const update = `UPDATE accounts SET balance = \$1, version = version \+ 1 WHERE id = \$2 AND version = \$3`

	t.Run("Should lock in id order, update both balances and record the event", func(t *testing.T) {
		ledger, mock := newLedger(t)

		expectBegin(mock, pgx.ReadWrite)
		expectLock(mock, low, "EUR", "5", 3)
		expectLock(mock, high, "EUR", "100", 7)
		mock.ExpectExec(update).
			WithArgs(pgxmock.AnyArg(), high.String(), 7).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(update).
			WithArgs(pgxmock.AnyArg(), low.String(), 3).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("INSERT INTO events").
			WithArgs(pgxmock.AnyArg(), events.FundsTransferred, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		res, err := ledger.Transfer(context.Background(), service.TransferInput{
			From:   high,
			To:     low,
			Amount: types.MustMoney("30"),
		})

		require.NoError(t, err)
		assert.Equal(t, "70", res.From.Balance.String())
		assert.Equal(t, "35", res.To.Balance.String())
		assert.Equal(t, 8, res.From.Version)
		assert.Equal(t, 4, res.To.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should roll back on insufficient funds", func(t *testing.T) {
		ledger, mock := newLedger(t)

		expectBegin(mock, pgx.ReadWrite)
		expectLock(mock, low, "EUR", "5", 1)
		expectLock(mock, high, "EUR", "100", 1)
		mock.ExpectRollback()

		_, err := ledger.Transfer(context.Background(), service.TransferInput{
			From:   low,
			To:     high,
			Amount: types.MustMoney("30"),
		})

		assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should roll back balances when the event cannot be recorded", func(t *testing.T) {
		ledger, mock := newLedger(t)

		expectBegin(mock, pgx.ReadWrite)
		expectLock(mock, low, "EUR", "50", 1)
		expectLock(mock, high, "EUR", "50", 1)
		mock.ExpectExec(update).WithArgs(pgxmock.AnyArg(), low.String(), 1).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(update).WithArgs(pgxmock.AnyArg(), high.String(), 1).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("INSERT INTO events").
			WithArgs(pgxmock.AnyArg(), events.FundsTransferred, pgxmock.AnyArg()).
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		_, err := ledger.Transfer(context.Background(), service.TransferInput{
			From:   low,
			To:     high,
			Amount: types.MustMoney("10"),
		})

		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should reject a transfer to the same account without a transaction", func(t *testing.T) {
		ledger, mock := newLedger(t)

		_, err := ledger.Transfer(context.Background(), service.TransferInput{From: low, To: low, Amount: types.MustMoney("1")})

		assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should refuse to mix currencies", func(t *testing.T) {
		ledger, mock := newLedger(t)

		expectBegin(mock, pgx.ReadWrite)
		expectLock(mock, low, "EUR", "50", 1)
		expectLock(mock, high, "USD", "50", 1)
		mock.ExpectRollback()

		_, err := ledger.Transfer(context.Background(), service.TransferInput{From: low, To: high, Amount: types.MustMoney("1")})

		assert.True(t, apperror.HasCode(err, apperror.CodeCurrencyMismatch))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedger_OpenAccount_UnknownUser(t *testing.T) {
	ledger, mock := newLedger(t)
	userID := id.New()

	expectBegin(mock, pgx.ReadWrite)
	mock.ExpectQuery("FROM users WHERE id").WithArgs(userID.String()).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := ledger.OpenAccount(context.Background(), userID, "EUR")

	assert.True(t, apperror.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_Statement_ReadOnly(t *testing.T) {
	ledger, mock := newLedger(t)
	userID, eur, usd := id.New(), id.New(), id.New()

	expectBegin(mock, pgx.ReadOnly)
	mock.ExpectQuery("FROM users WHERE id").
		WithArgs(userID.String()).
		WillReturnRows(mock.NewRows([]string{"id", "name"}).AddRow(userID.String(), "Ada"))
	mock.ExpectQuery(`FROM accounts WHERE user_id = \$1 ORDER BY currency`).
		WithArgs(userID.String()).
		WillReturnRows(mock.NewRows(accountCols).
			AddRow(eur.String(), userID.String(), "EUR", "1", 1).
			AddRow(usd.String(), userID.String(), "USD", "2", 1))
	mock.ExpectCommit()

	st, err := ledger.Statement(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, "Ada", st.User.Name)
	require.Len(t, st.Accounts, 2)
	assert.Equal(t, eur, st.Accounts[0].ID)
	assert.Equal(t, usd, st.Accounts[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_Deposit_RetriesConcurrentModification(t *testing.T) {
	ledger, mock := newLedger(t)
	accountID := id.New()
	const update = `UPDATE accounts SET balance = \$1, version = version \+ 1 WHERE id = \$2 AND version = \$3`

	// first attempt loses the optimistic lock
	expectBegin(mock, pgx.ReadWrite)
	expectLock(mock, accountID, "EUR", "10", 1)
	mock.ExpectExec(update).WithArgs(pgxmock.AnyArg(), accountID.String(), 1).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()
	// second attempt sees the newer row
	expectBegin(mock, pgx.ReadWrite)
	expectLock(mock, accountID, "EUR", "15", 2)
	mock.ExpectExec(update).WithArgs(pgxmock.AnyArg(), accountID.String(), 2).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO events").
		WithArgs(pgxmock.AnyArg(), events.FundsDeposited, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	a, err := ledger.Deposit(context.Background(), accountID, types.MustMoney("5"))

	require.NoError(t, err)
	assert.Equal(t, "20", a.Balance.String())
	assert.Equal(t, 3, a.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_Deposit_GivesUpAfterRetries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	ledger := service.NewLedger(service.Config{Pool: mock, ConflictRetries: -1})
	accountID := id.New()

	expectBegin(mock, pgx.ReadWrite)
	expectLock(mock, accountID, "EUR", "10", 1)
	mock.ExpectExec("UPDATE accounts").WithArgs(pgxmock.AnyArg(), accountID.String(), 1).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err = ledger.Deposit(context.Background(), accountID, types.MustMoney("5"))

	assert.True(t, apperror.IsConcurrentModification(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
