package verifier

import (
	"context"
	"errors"
	"testing"

	"earlyadopters/internal/config"
	"earlyadopters/internal/content"
	"earlyadopters/internal/oracle"

	"github.com/stretchr/testify/require"
)

type fakeOracle struct {
	claims    []string
	assertion oracle.Assertion
	err       error
}

func (f *fakeOracle) Assert(_ context.Context, claim string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.claims = append(f.claims, claim)
	return "assertion-1", nil
}

func (f *fakeOracle) Assertion(_ context.Context, id string) (oracle.Assertion, error) {
	if f.err != nil {
		return oracle.Assertion{}, f.err
	}
	a := f.assertion
	a.ID = id
	return a, nil
}

func TestContentVerifierModes(t *testing.T) {
	ctx := context.Background()
	store := content.NewMemoryStore()
	detailURI, err := content.PutJSON(ctx, store, content.Detail{Content: "Great App"})
	require.NoError(t, err)

	cases := []struct {
		mode string
		text string
		want bool
	}{
		{config.ModeAny, "", true},
		{config.ModeNonEmpty, "   ", false},
		{config.ModeNonEmpty, "nice", true},
		{config.ModeContains, "this is a great app!", true},
		{config.ModeContains, "meh", false},
		{config.ModeEquals, "  great app ", true},
		{config.ModeEquals, "great app indeed", false},
	}
	for _, tc := range cases {
		v, err := NewContentVerifier(tc.mode, store)
		require.NoError(t, err)
		got, err := v.Verify(ctx, Subject{DetailURI: detailURI, Content: tc.text})
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "mode=%s text=%q", tc.mode, tc.text)
	}
}

func TestContentVerifierMissingDetail(t *testing.T) {
	v, err := NewContentVerifier(config.ModeEquals, content.NewMemoryStore())
	require.NoError(t, err)
	c, err := content.ComputeCID([]byte("absent"))
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), Subject{DetailURI: content.URIFromCID(c), Content: "x"})
	require.ErrorIs(t, err, content.ErrNotFound)
}

func TestOracleVerifierStartFinish(t *testing.T) {
	ctx := context.Background()
	store := content.NewMemoryStore()
	detailURI, err := content.PutJSON(ctx, store, content.Detail{Content: "@familyfinance"})
	require.NoError(t, err)
	fo := &fakeOracle{}
	v := NewOracleVerifier("Twitter user with the handle {content} follows twitter user with the handle {detail}", store, fo)

	claim, err := v.Start(ctx, Subject{DetailURI: detailURI, Content: " @alice "})
	require.NoError(t, err)
	require.Equal(t, "assertion-1", claim.ID)
	require.Equal(t, "Twitter user with the handle @alice follows twitter user with the handle @familyfinance", claim.Statement)
	require.Equal(t, []string{claim.Statement}, fo.claims)

	res, err := v.Finish(ctx, claim)
	require.NoError(t, err)
	require.False(t, res.Settled)

	fo.assertion = oracle.Assertion{Settled: true, Result: false}
	res, err = v.Finish(ctx, claim)
	require.NoError(t, err)
	require.Equal(t, Resolution{Settled: true, Accepted: false}, res)

	fo.assertion = oracle.Assertion{Settled: true, Result: true}
	res, err = v.Finish(ctx, claim)
	require.NoError(t, err)
	require.True(t, res.Accepted)
}

func TestOracleVerifierPropagatesOracleFailure(t *testing.T) {
	fo := &fakeOracle{err: errors.New("down")}
	v := NewOracleVerifier("{content}", nil, fo)
	_, err := v.Start(context.Background(), Subject{Content: "x"})
	require.Error(t, err)
}

func TestRegistryFromConfig(t *testing.T) {
	cfg := map[string]config.VerifierConfig{
		"SEND_FEEDBACK":  {Kind: config.VerifierContent, Mode: config.ModeNonEmpty},
		"FOLLOW_TWITTER": {Kind: config.VerifierOracle, Statement: "{content} follows {detail}"},
	}
	reg, err := FromConfig(cfg, content.NewMemoryStore(), &fakeOracle{})
	require.NoError(t, err)
	require.Equal(t, []string{"FOLLOW_TWITTER", "SEND_FEEDBACK"}, reg.Types())

	v, ok := reg.Lookup("SEND_FEEDBACK")
	require.True(t, ok)
	_, sync := v.(Synchronous)
	require.True(t, sync)

	v, ok = reg.Lookup("FOLLOW_TWITTER")
	require.True(t, ok)
	_, twoPhase := v.(TwoPhase)
	require.True(t, twoPhase)

	_, ok = reg.Lookup("UNKNOWN")
	require.False(t, ok)

	_, err = FromConfig(cfg, content.NewMemoryStore(), nil)
	require.Error(t, err)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	v, err := NewContentVerifier(config.ModeAny, nil)
	require.NoError(t, err)
	require.NoError(t, reg.Register("A", v))
	require.Error(t, reg.Register("A", v))
	require.Error(t, reg.Register(" ", v))
}
