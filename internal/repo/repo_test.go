package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"earlyadopters/internal/db"
	"earlyadopters/internal/domain"
	"earlyadopters/internal/migrate"
	"earlyadopters/internal/repo"
)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

func TestProjectIDsAreSequential(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		id, err := r.InsertProject(ctx, nil, domain.Project{Owner: "0xabc", MetadataURI: "ipfs://p", CreatedAt: "2024-01-01T00:00:00Z"})
		require.NoError(t, err)
		require.Equal(t, want, id)
	}
	p, err := r.GetProject(ctx, nil, 2)
	require.NoError(t, err)
	require.False(t, p.Distributed)

	_, err = r.GetProject(ctx, nil, 42)
	require.ErrorIs(t, err, repo.ErrNotFound)

	items, err := r.ListProjects(ctx, "", 2, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(3), items[0].ID)
}

func TestCompletionsNewestFirst(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	id, err := r.InsertProject(ctx, nil, domain.Project{Owner: "0xabc", MetadataURI: "ipfs://p", CreatedAt: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)
	for i, ts := range []string{"2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z", "2024-01-02T00:00:00Z"} {
		require.NoError(t, r.InsertCompletedActivity(ctx, nil, domain.CompletedActivity{
			ID: []string{"a", "b", "c"}[i], ProjectID: id, ActivityType: "SEND_FEEDBACK", Author: "0xabc", SubmittedAt: ts, Content: "x",
		}))
	}
	items, err := r.ListCompletedActivities(ctx, repo.CompletionFilters{ProjectID: id})
	require.NoError(t, err)
	var ids []string
	for _, c := range items {
		ids = append(ids, c.ID)
	}
	require.Equal(t, []string{"c", "b", "a"}, ids)
}

func TestAcceptedAuthorsDistinctInFirstAcceptanceOrder(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	id, err := r.InsertProject(ctx, nil, domain.Project{Owner: "0xowner", MetadataURI: "ipfs://p", CreatedAt: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)
	for i, author := range []string{"0xb", "0xa", "0xb"} {
		_, err := r.InsertAcceptance(ctx, nil, domain.Acceptance{
			ProjectID: id, CompletedActivityID: []string{"c1", "c2", "c3"}[i], Author: author, AcceptedAt: "2024-01-01T00:00:00Z",
		})
		require.NoError(t, err)
	}
	authors, err := r.AcceptedAuthors(ctx, nil, id)
	require.NoError(t, err)
	require.Equal(t, []string{"0xb", "0xa"}, authors)

	_, err = r.InsertAcceptance(ctx, nil, domain.Acceptance{ProjectID: id, CompletedActivityID: "c1", Author: "0xc", AcceptedAt: "x"})
	require.Error(t, err)
}

func TestBalanceDefaultsToZero(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	b, err := r.GetBalance(ctx, nil, "0xnobody")
	require.NoError(t, err)
	require.Equal(t, "0", b.Amount)

	require.NoError(t, r.PutBalance(ctx, nil, domain.Balance{Account: "0xnobody", Amount: "12", UpdatedAt: "t1"}))
	require.NoError(t, r.PutBalance(ctx, nil, domain.Balance{Account: "0xnobody", Amount: "15", UpdatedAt: "t2"}))
	b, err = r.GetBalance(ctx, nil, "0xnobody")
	require.NoError(t, err)
	require.Equal(t, "15", b.Amount)
}
