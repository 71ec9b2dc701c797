package service

import (
	"context"
	"fmt"

	"txchain/internal/core/apperror"
	appctx "txchain/internal/core/context"
	"txchain/internal/core/id"
	"txchain/internal/core/types"
	"txchain/internal/domain/accounts"
	"txchain/internal/domain/events"
	"txchain/internal/infrastructure/storage/postgres/account_repo"
	"txchain/internal/infrastructure/storage/postgres/event_repo"
	"txchain/pkg/logger"
	"txchain/pkg/txchain"
)

// TransferInput moves Amount from one account to another.
type TransferInput struct {
	From   id.ID
	To     id.ID
	Amount types.Money
}

// Transferred holds both accounts after a transfer.
type Transferred struct {
	From *accounts.Account
	To   *accounts.Account
}

type fundsTransferredPayload struct {
	From     id.ID       `json:"from"`
	To       id.ID       `json:"to"`
	Amount   types.Money `json:"amount"`
	Currency string      `json:"currency"`
}

// Transfer moves money between two accounts of the same currency and records
// a funds_transferred event. Both rows are locked in id order. Conflicting
// concurrent updates are retried in a new transaction.
func (l *Ledger) Transfer(ctx context.Context, in TransferInput) (*Transferred, error) {
	ctx = appctx.WithOperation(ctx, "transfer")

	if in.From == in.To {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "cannot transfer to the same account")
	}

	work := func(ctx context.Context, tx *account_repo.TxRepository) (*account_repo.TxRepository, *Transferred, error) {
		from, to, err := lockPair(ctx, tx, in.From, in.To)
		if err != nil {
			return tx, nil, err
		}

		if err := from.TransferTo(to, in.Amount); err != nil {
			return tx, nil, err
		}
		if err := tx.UpdateBalance(ctx, from); err != nil {
			return tx, nil, fmt.Errorf("debit %s: %w", from.ID, err)
		}
		if err := tx.UpdateBalance(ctx, to); err != nil {
			return tx, nil, fmt.Errorf("credit %s: %w", to.ID, err)
		}

		e, err := events.NewEvent(events.FundsTransferred, fundsTransferredPayload{
			From:     from.ID,
			To:       to.ID,
			Amount:   in.Amount,
			Currency: from.Currency,
		})
		if err != nil {
			return tx, nil, err
		}
		tx, err = txchain.ChainFunc(ctx, tx, l.events, func(ctx context.Context, etx *event_repo.TxRepository) (*event_repo.TxRepository, error) {
			return etx, etx.Create(ctx, e)
		})
		if err != nil {
			return tx, nil, fmt.Errorf("record transfer: %w", err)
		}

		return tx, &Transferred{From: from, To: to}, nil
	}

	var res *Transferred
	err := l.retryConflicts(ctx, func(ctx context.Context) error {
		var err error
		res, err = txchain.BeginWithOptions(ctx, l.accounts, l.txOpts, work)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "funds transferred", "from", in.From, "to", in.To, "amount", in.Amount.String())
	return res, nil
}

// Deposit credits amount to an account and records a funds_deposited event.
func (l *Ledger) Deposit(ctx context.Context, accountID id.ID, amount types.Money) (*accounts.Account, error) {
	ctx = appctx.WithOperation(ctx, "deposit")

	work := func(ctx context.Context, tx *account_repo.TxRepository) (*account_repo.TxRepository, *accounts.Account, error) {
		a, err := tx.GetForUpdate(ctx, accountID)
		if err != nil {
			return tx, nil, err
		}
		if err := a.Deposit(amount); err != nil {
			return tx, nil, err
		}
		if err := tx.UpdateBalance(ctx, a); err != nil {
			return tx, nil, err
		}

		e, err := events.NewEvent(events.FundsDeposited, fundsDepositedPayload{
			AccountID: a.ID,
			Amount:    amount,
			Balance:   a.Balance,
		})
		if err != nil {
			return tx, nil, err
		}
		tx, err = txchain.ChainFunc(ctx, tx, l.events, func(ctx context.Context, etx *event_repo.TxRepository) (*event_repo.TxRepository, error) {
			return etx, etx.Create(ctx, e)
		})
		return tx, a, err
	}

	var res *accounts.Account
	err := l.retryConflicts(ctx, func(ctx context.Context) error {
		var err error
		res, err = txchain.BeginWithOptions(ctx, l.accounts, l.txOpts, work)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// lockPair locks both accounts in id order and returns them as (from, to).
func lockPair(ctx context.Context, tx *account_repo.TxRepository, fromID, toID id.ID) (*accounts.Account, *accounts.Account, error) {
	first, second := fromID, toID
	if id.Less(toID, fromID) {
		first, second = toID, fromID
	}

	a, err := tx.GetForUpdate(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := tx.GetForUpdate(ctx, second)
	if err != nil {
		return nil, nil, err
	}

	if a.ID == fromID {
		return a, b, nil
	}
	return b, a, nil
}
