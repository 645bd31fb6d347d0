package ledger

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"earlyadopters/internal/db"
	"earlyadopters/internal/migrate"
	"earlyadopters/internal/repo"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
	zero  = "0x0000000000000000000000000000000000000000"
)

func newLedger(t *testing.T) Ledger {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return Ledger{Repo: repo.Repo{DB: conn}}
}

func TestTransferMovesFunds(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Credit(ctx, nil, alice, big.NewInt(100), "faucet"))
	require.NoError(t, l.Transfer(ctx, nil, alice, bob, big.NewInt(30), "tip"))

	a, err := l.Balance(ctx, nil, alice)
	require.NoError(t, err)
	b, err := l.Balance(ctx, nil, bob)
	require.NoError(t, err)
	require.Equal(t, int64(70), a.Int64())
	require.Equal(t, int64(30), b.Int64())

	entries, err := l.Repo.ListLedgerEntries(ctx, bob, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, alice, entries[0].From)
}

func TestTransferFailures(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Credit(ctx, nil, alice, big.NewInt(10), ""))

	require.ErrorIs(t, l.Transfer(ctx, nil, alice, bob, big.NewInt(11), ""), ErrInsufficientFunds)
	require.ErrorIs(t, l.Transfer(ctx, nil, alice, zero, big.NewInt(1), ""), ErrInvalidRecipient)
	require.ErrorIs(t, l.Transfer(ctx, nil, alice, bob, big.NewInt(-1), ""), ErrInvalidAmount)
	require.ErrorIs(t, l.Credit(ctx, nil, zero, big.NewInt(1), ""), ErrInvalidRecipient)

	a, err := l.Balance(ctx, nil, alice)
	require.NoError(t, err)
	require.Equal(t, int64(10), a.Int64())
}

func TestTransferRollsBackWithTransaction(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Credit(ctx, nil, alice, big.NewInt(10), ""))

	tx, err := l.Repo.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, l.Transfer(ctx, tx, alice, bob, big.NewInt(10), ""))
	require.NoError(t, tx.Rollback())

	b, err := l.Balance(ctx, nil, bob)
	require.NoError(t, err)
	require.Equal(t, int64(0), b.Int64())
}
