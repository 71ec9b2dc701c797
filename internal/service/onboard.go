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
	"txchain/internal/domain/users"
	"txchain/internal/infrastructure/storage/postgres/account_repo"
	"txchain/internal/infrastructure/storage/postgres/event_repo"
	"txchain/internal/infrastructure/storage/postgres/user_repo"
	"txchain/pkg/logger"
	"txchain/pkg/txchain"
)

// OnboardInput describes a new user and their first account.
type OnboardInput struct {
	Name     string
	Currency string
	// Deposit is credited to the new account when positive.
	Deposit types.Money
}

// Onboarded is the stored result of an onboarding.
type Onboarded struct {
	User    *users.User
	Account *accounts.Account
}

// OnboardOutcome is the per-input result of OnboardAll.
type OnboardOutcome struct {
	Input  OnboardInput
	Result *Onboarded
	Err    error
}

// Onboard creates a user, opens their account and records the events in a
// single transaction started on the users repository.
func (l *Ledger) Onboard(ctx context.Context, in OnboardInput) (*Onboarded, error) {
	ctx = appctx.WithOperation(ctx, "onboard")

	res, err := txchain.BeginWithOptions(ctx, l.users, l.txOpts, func(ctx context.Context, tx *user_repo.TxRepository) (*user_repo.TxRepository, *Onboarded, error) {
		return l.onboard(ctx, tx, in)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "user onboarded", "user_id", res.User.ID, "account_id", res.Account.ID)
	return res, nil
}

// OnboardAll onboards every input in one transaction. Each input runs in its
// own savepoint: a failed input is reported in its outcome and the others
// still commit. The returned error is set only when the transaction fails.
func (l *Ledger) OnboardAll(ctx context.Context, inputs []OnboardInput) ([]OnboardOutcome, error) {
	ctx = appctx.WithOperation(ctx, "onboard_all")

	outcomes, err := txchain.BeginWithOptions(ctx, l.users, l.txOpts, func(ctx context.Context, tx *user_repo.TxRepository) (*user_repo.TxRepository, []OnboardOutcome, error) {
		out := make([]OnboardOutcome, 0, len(inputs))
		for _, in := range inputs {
			held, res, err := txchain.ChainWithOptions(ctx, tx, l.users, txchain.ChainOptions{Savepoint: true},
				func(ctx context.Context, inner *user_repo.TxRepository) (*user_repo.TxRepository, *Onboarded, error) {
					return l.onboard(ctx, inner, in)
				})
			if held == nil || !held.Attached() {
				// the savepoint itself could not be rolled back
				return tx, nil, err
			}
			tx = held
			out = append(out, OnboardOutcome{Input: in, Result: res, Err: err})
			if err != nil {
				logger.Warn(ctx, "onboarding skipped", "name", in.Name, "error", err)
			}
		}
		return tx, out, nil
	})
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}

// onboard is the unit of work shared by Onboard and OnboardAll: users → accounts → events.
func (l *Ledger) onboard(ctx context.Context, tx *user_repo.TxRepository, in OnboardInput) (*user_repo.TxRepository, *Onboarded, error) {
	if in.Deposit.IsNegative() {
		return tx, nil, apperror.NewValidation("deposit cannot be negative").WithDetail("deposit", in.Deposit.String())
	}

	user, err := tx.Create(ctx, users.NewUser(in.Name))
	if err != nil {
		return tx, nil, fmt.Errorf("create user: %w", err)
	}

	tx, account, err := txchain.Chain(ctx, tx, l.accounts, func(ctx context.Context, atx *account_repo.TxRepository) (*account_repo.TxRepository, *accounts.Account, error) {
		a := accounts.NewAccount(user.ID, in.Currency)
		if in.Deposit.IsPositive() {
			if err := a.Deposit(in.Deposit); err != nil {
				return atx, nil, err
			}
		}
		created, err := atx.Create(ctx, a)
		if err != nil {
			return atx, nil, fmt.Errorf("open account: %w", err)
		}
		return atx, created, nil
	})
	if err != nil {
		return tx, nil, err
	}

	recorded, err := onboardingEvents(user, account)
	if err != nil {
		return tx, nil, err
	}
	tx, err = txchain.ChainFunc(ctx, tx, l.events, func(ctx context.Context, etx *event_repo.TxRepository) (*event_repo.TxRepository, error) {
		return etx, etx.CreateBatch(ctx, recorded)
	})
	if err != nil {
		return tx, nil, fmt.Errorf("record onboarding events: %w", err)
	}

	return tx, &Onboarded{User: user, Account: account}, nil
}

type userOnboardedPayload struct {
	UserID    id.ID  `json:"userId"`
	Name      string `json:"name"`
	AccountID id.ID  `json:"accountId"`
	Currency  string `json:"currency"`
}

type fundsDepositedPayload struct {
	AccountID id.ID       `json:"accountId"`
	Amount    types.Money `json:"amount"`
	Balance   types.Money `json:"balance"`
}

func onboardingEvents(u *users.User, a *accounts.Account) ([]*events.Event, error) {
	onboarded, err := events.NewEvent(events.UserOnboarded, userOnboardedPayload{
		UserID:    u.ID,
		Name:      u.Name,
		AccountID: a.ID,
		Currency:  a.Currency,
	})
	if err != nil {
		return nil, err
	}
	list := []*events.Event{onboarded}

	if a.Balance.IsPositive() {
		deposited, err := events.NewEvent(events.FundsDeposited, fundsDepositedPayload{
			AccountID: a.ID,
			Amount:    a.Balance,
			Balance:   a.Balance,
		})
		if err != nil {
			return nil, err
		}
		list = append(list, deposited)
	}
	return list, nil
}
