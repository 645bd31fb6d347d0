// Package ledger keeps native-currency balances for accounts. Every call runs
// inside the caller's transaction so a transfer commits or rolls back together
// with the state change that caused it.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"earlyadopters/internal/chain"
	"earlyadopters/internal/domain"
	"earlyadopters/internal/repo"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidRecipient  = errors.New("recipient cannot receive funds")
	ErrInvalidAmount     = errors.New("amount must not be negative")
)

type Ledger struct {
	Repo repo.Repo
	Now  func() time.Time
}

func (l Ledger) now() string {
	if l.Now != nil {
		return l.Now().UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// Balance returns the account balance in wei.
func (l Ledger) Balance(ctx context.Context, tx *sql.Tx, account string) (*big.Int, error) {
	b, err := l.Repo.GetBalance(ctx, tx, account)
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(b.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt balance %q for %s", b.Amount, account)
	}
	return v, nil
}

// Credit adds funds to account without a sender.
func (l Ledger) Credit(ctx context.Context, tx *sql.Tx, account string, amount *big.Int, memo string) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := l.checkRecipient(account); err != nil {
		return err
	}
	now := l.now()
	if err := l.add(ctx, tx, account, amount, now); err != nil {
		return err
	}
	return l.Repo.InsertLedgerEntry(ctx, tx, domain.LedgerEntry{TS: now, To: account, Amount: amount.String(), Memo: memo})
}

// Transfer moves amount from one account to another.
func (l Ledger) Transfer(ctx context.Context, tx *sql.Tx, from, to string, amount *big.Int, memo string) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := l.checkRecipient(to); err != nil {
		return err
	}
	bal, err := l.Balance(ctx, tx, from)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientFunds, from, bal, amount)
	}
	now := l.now()
	if from != to {
		if err := l.add(ctx, tx, from, new(big.Int).Neg(amount), now); err != nil {
			return err
		}
		if err := l.add(ctx, tx, to, amount, now); err != nil {
			return err
		}
	}
	return l.Repo.InsertLedgerEntry(ctx, tx, domain.LedgerEntry{TS: now, From: from, To: to, Amount: amount.String(), Memo: memo})
}

func (l Ledger) add(ctx context.Context, tx *sql.Tx, account string, delta *big.Int, now string) error {
	bal, err := l.Balance(ctx, tx, account)
	if err != nil {
		return err
	}
	bal.Add(bal, delta)
	return l.Repo.PutBalance(ctx, tx, domain.Balance{Account: account, Amount: bal.String(), UpdatedAt: now})
}

func (l Ledger) checkRecipient(account string) error {
	if account == "" || chain.IsZeroAddress(account) {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, account)
	}
	return nil
}
