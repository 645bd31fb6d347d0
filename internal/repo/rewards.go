package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"earlyadopters/internal/domain"
)

// InsertReward stores the reward and its payouts.
func (r Repo) InsertReward(ctx context.Context, tx *sql.Tx, rw domain.Reward) error {
	q := r.q(tx)
	if _, err := q.ExecContext(ctx, `INSERT INTO rewards(project_id,detail_uri,value,share,remainder,recipients,distributed_by,distributed_at) VALUES (?,?,?,?,?,?,?,?)`,
		rw.ProjectID, rw.DetailURI, rw.Value, rw.Share, rw.Remainder, rw.Recipients, rw.DistributedBy, rw.DistributedAt); err != nil {
		return fmt.Errorf("insert reward: %w", err)
	}
	for _, p := range rw.Payouts {
		if _, err := q.ExecContext(ctx, `INSERT INTO payouts(project_id,recipient,amount) VALUES (?,?,?)`, rw.ProjectID, p.Recipient, p.Amount); err != nil {
			return fmt.Errorf("insert payout: %w", err)
		}
	}
	return nil
}

func (r Repo) GetReward(ctx context.Context, tx *sql.Tx, projectID int64) (domain.Reward, error) {
	q := r.q(tx)
	var rw domain.Reward
	err := q.QueryRowContext(ctx, `SELECT project_id,detail_uri,value,share,remainder,recipients,distributed_by,distributed_at FROM rewards WHERE project_id=?`, projectID).
		Scan(&rw.ProjectID, &rw.DetailURI, &rw.Value, &rw.Share, &rw.Remainder, &rw.Recipients, &rw.DistributedBy, &rw.DistributedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rw, ErrNotFound
	}
	if err != nil {
		return rw, err
	}
	rows, err := q.QueryContext(ctx, `SELECT recipient,amount FROM payouts WHERE project_id=? ORDER BY rowid ASC`, projectID)
	if err != nil {
		return rw, err
	}
	defer rows.Close()
	rw.Payouts = []domain.Payout{}
	for rows.Next() {
		var p domain.Payout
		if err := rows.Scan(&p.Recipient, &p.Amount); err != nil {
			return rw, err
		}
		rw.Payouts = append(rw.Payouts, p)
	}
	return rw, rows.Err()
}

// HasReward reports whether the project's reward was distributed.
func (r Repo) HasReward(ctx context.Context, tx *sql.Tx, projectID int64) (bool, error) {
	return r.exists(ctx, tx, `SELECT 1 FROM rewards WHERE project_id=? LIMIT 1`, projectID)
}

// GetBalance returns the stored balance; accounts never credited read as "0".
func (r Repo) GetBalance(ctx context.Context, tx *sql.Tx, account string) (domain.Balance, error) {
	b := domain.Balance{Account: account, Amount: "0"}
	err := r.q(tx).QueryRowContext(ctx, `SELECT amount,updated_at FROM balances WHERE account=?`, account).Scan(&b.Amount, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return b, nil
	}
	return b, err
}

func (r Repo) PutBalance(ctx context.Context, tx *sql.Tx, b domain.Balance) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO balances(account,amount,updated_at) VALUES (?,?,?)
ON CONFLICT(account) DO UPDATE SET amount=excluded.amount, updated_at=excluded.updated_at`, b.Account, b.Amount, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put balance: %w", err)
	}
	return nil
}

func (r Repo) InsertLedgerEntry(ctx context.Context, tx *sql.Tx, e domain.LedgerEntry) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO ledger_entries(ts,from_account,to_account,amount,memo) VALUES (?,?,?,?,?)`,
		e.TS, nullable(e.From), e.To, e.Amount, nullable(e.Memo))
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListLedgerEntries returns entries touching account, newest first.
func (r Repo) ListLedgerEntries(ctx context.Context, account string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,COALESCE(from_account,''),to_account,amount,COALESCE(memo,'') FROM ledger_entries
WHERE from_account=? OR to_account=? ORDER BY id DESC LIMIT ?`, account, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.LedgerEntry{}
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.From, &e.To, &e.Amount, &e.Memo); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
