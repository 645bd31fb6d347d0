package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"earlyadopters/internal/db"
)

func TestApplyIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	ctx := context.Background()

	v, err := Version(ctx, conn)
	require.NoError(t, err)
	require.Equal(t, 0, v)

	applied, err := Apply(ctx, conn)
	require.NoError(t, err)
	require.Equal(t, []string{"001_init.sql", "002_content_blobs.sql", "003_verification_reservations.sql"}, applied)

	applied, err = Apply(ctx, conn)
	require.NoError(t, err)
	require.Empty(t, applied)

	v, err = Version(ctx, conn)
	require.NoError(t, err)
	require.Equal(t, 3, v)
}
