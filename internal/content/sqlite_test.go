package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"earlyadopters/internal/db"
	"earlyadopters/internal/migrate"
)

func TestSQLStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	workspace := t.TempDir()

	conn, err := db.Open(db.Config{Workspace: workspace})
	require.NoError(t, err)
	_, err = migrate.Apply(ctx, conn)
	require.NoError(t, err)
	s := NewSQLStore(conn)
	uri, err := PutJSON(ctx, s, Detail{Content: "give feedback"})
	require.NoError(t, err)

	mem := NewMemoryStore()
	memURI, err := PutJSON(ctx, mem, Detail{Content: "give feedback"})
	require.NoError(t, err)
	require.Equal(t, memURI, uri)

	again, err := PutJSON(ctx, s, Detail{Content: "give feedback"})
	require.NoError(t, err)
	require.Equal(t, uri, again)
	require.NoError(t, conn.Close())

	conn, err = db.Open(db.Config{Workspace: workspace})
	require.NoError(t, err)
	defer conn.Close()
	s = NewSQLStore(conn)
	detail, err := ReadDetail(ctx, s, uri)
	require.NoError(t, err)
	require.Equal(t, "give feedback", detail)

	c, err := ComputeCID([]byte("never stored"))
	require.NoError(t, err)
	_, err = s.Get(ctx, URIFromCID(c))
	require.ErrorIs(t, err, ErrNotFound)
}
