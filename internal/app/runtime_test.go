package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"earlyadopters/internal/chain"
	"earlyadopters/internal/config"
	"earlyadopters/internal/content"
	"earlyadopters/internal/logging"
	"earlyadopters/internal/migrate"
)

func TestOpenWiresDefaultWorkspace(t *testing.T) {
	ctx := context.Background()
	rt, err := Open(ctx, t.TempDir(), Options{Logger: logging.Discard()})
	require.NoError(t, err)
	defer rt.Close()

	v, err := migrate.Version(ctx, rt.DB)
	require.NoError(t, err)
	require.Equal(t, 3, v)
	require.IsType(t, &content.SQLStore{}, rt.Store)
	require.Equal(t, []string{"FOLLOW_TWITTER", "SEND_FEEDBACK"}, rt.Engine.Verifiers.Types())
	require.Equal(t, "MATIC", rt.Engine.Chain().Currency)

	const owner = "0x1111111111111111111111111111111111111111"
	const author = "0x2222222222222222222222222222222222222222"
	p, err := rt.Engine.CreateProject(ctx, owner, "ipfs://meta")
	require.NoError(t, err)
	detail, err := content.PutJSON(ctx, rt.Store, content.Detail{Content: "give feedback"})
	require.NoError(t, err)
	a, err := rt.Engine.AddActivity(ctx, owner, p.ID, "SEND_FEEDBACK", detail)
	require.NoError(t, err)
	c, err := rt.Engine.SubmitCompletedActivity(ctx, author, p.ID, a.Index, "great app")
	require.NoError(t, err)

	ok, err := rt.Gate.Check(ctx, p.ID, chain.DID(author))
	require.NoError(t, err)
	require.False(t, ok)

	_, err = rt.Engine.AcceptCompletedActivity(ctx, owner, p.ID, a.Index, c.ID, author)
	require.NoError(t, err)
	ok, err = rt.Gate.Check(ctx, p.ID, chain.DID(author))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestContentSurvivesWorkspaceReopen(t *testing.T) {
	ctx := context.Background()
	workspace := t.TempDir()
	cfg := config.Default()
	cfg.Verifiers["SEND_FEEDBACK"] = config.VerifierConfig{Kind: config.VerifierContent, Mode: config.ModeContains}

	rt, err := Open(ctx, workspace, Options{Config: cfg, Logger: logging.Discard()})
	require.NoError(t, err)
	const owner = "0x1111111111111111111111111111111111111111"
	const author = "0x2222222222222222222222222222222222222222"
	detail, err := content.PutJSON(ctx, rt.Store, content.Detail{Content: "give feedback"})
	require.NoError(t, err)
	p, err := rt.Engine.CreateProject(ctx, owner, "ipfs://meta")
	require.NoError(t, err)
	a, err := rt.Engine.AddActivity(ctx, owner, p.ID, "SEND_FEEDBACK", detail)
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	rt2, err := Open(ctx, workspace, Options{Config: cfg, Logger: logging.Discard()})
	require.NoError(t, err)
	defer rt2.Close()
	data, err := rt2.Store.Get(ctx, detail)
	require.NoError(t, err)
	require.JSONEq(t, `{"content":"give feedback"}`, string(data))

	c, err := rt2.Engine.SubmitCompletedActivity(ctx, author, p.ID, a.Index, "Give Feedback, please")
	require.NoError(t, err)
	ok, err := rt2.Engine.IsVerified(ctx, p.ID, a.Index, c.ID)
	require.NoError(t, err)
	require.True(t, ok)
}
