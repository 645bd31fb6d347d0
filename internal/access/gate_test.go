package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"earlyadopters/internal/chain"
)

type countingChecker struct {
	allowed map[string]bool
	calls   int
}

func (c *countingChecker) IsAuthorOfAcceptedCompletedActivity(_ context.Context, projectID int64, author string) (bool, error) {
	c.calls++
	return c.allowed[cacheKey(projectID, author)], nil
}

const alice = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func TestGateCachesOnlyPositiveAnswers(t *testing.T) {
	checker := &countingChecker{allowed: map[string]bool{}}
	g, err := NewGate(checker, Options{CacheSize: 8})
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := g.Check(ctx, 1, chain.DID(alice))
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = g.Check(ctx, 1, chain.DID(alice))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 2, checker.calls)

	checker.allowed[cacheKey(1, alice)] = true
	ok, err = g.Check(ctx, 1, "eip155:80001:"+alice)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = g.Check(ctx, 1, alice)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, checker.calls)

	g.ClearLocal()
	_, err = g.Check(ctx, 1, chain.DID(alice))
	require.NoError(t, err)
	require.Equal(t, 4, checker.calls)
}

func TestGateRejectsMalformedDID(t *testing.T) {
	g, err := NewGate(&countingChecker{}, Options{})
	require.NoError(t, err)
	_, err = g.Check(context.Background(), 1, "did:web:example.com")
	require.ErrorIs(t, err, chain.ErrInvalidAddress)
}

func TestNewRedisClientDisabledWithoutAddress(t *testing.T) {
	require.Nil(t, NewRedisClient("", "", 0))
	c := NewRedisClient("127.0.0.1:6379", "", 0)
	require.NotNil(t, c)
	require.NoError(t, c.Close())
}
