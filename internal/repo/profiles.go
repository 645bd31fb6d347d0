package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"earlyadopters/internal/domain"
)

func (r Repo) UpsertProfile(ctx context.Context, tx *sql.Tx, p domain.Profile) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO profiles(account,uri,updated_at) VALUES (?,?,?)
ON CONFLICT(account) DO UPDATE SET uri=excluded.uri, updated_at=excluded.updated_at`, p.Account, p.URI, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r Repo) GetProfile(ctx context.Context, account string) (domain.Profile, error) {
	var p domain.Profile
	err := r.DB.QueryRowContext(ctx, `SELECT account,uri,updated_at FROM profiles WHERE account=?`, account).Scan(&p.Account, &p.URI, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}
