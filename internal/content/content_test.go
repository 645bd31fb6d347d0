package content

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	uri, err := s.Put(ctx, []byte(`{"content":"give feedback"}`))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "ipfs://bafkrei"), uri)

	again, err := s.Put(ctx, []byte(`{"content":"give feedback"}`))
	require.NoError(t, err)
	require.Equal(t, uri, again)

	data, err := s.Get(ctx, uri)
	require.NoError(t, err)
	require.JSONEq(t, `{"content":"give feedback"}`, string(data))

	detail, err := ReadDetail(ctx, s, uri)
	require.NoError(t, err)
	require.Equal(t, "give feedback", detail)
}

func TestMemoryStoreMissingAndInvalid(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c, err := ComputeCID([]byte("never stored"))
	require.NoError(t, err)
	_, err = s.Get(ctx, URIFromCID(c))
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, "ipfs://not-a-cid")
	require.ErrorIs(t, err, ErrInvalidURI)
}

func TestReadDetailPlainText(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	uri, err := s.Put(ctx, []byte("  @familyfinance\n"))
	require.NoError(t, err)
	detail, err := ReadDetail(ctx, s, uri)
	require.NoError(t, err)
	require.Equal(t, "@familyfinance", detail)
}

func TestParseURIForms(t *testing.T) {
	c, err := ComputeCID([]byte("x"))
	require.NoError(t, err)
	for _, in := range []string{URIFromCID(c), "/ipfs/" + c.String(), c.String(), URIFromCID(c) + "/metadata.json"} {
		got, err := ParseURI(in)
		require.NoError(t, err, in)
		require.True(t, got.Equals(c))
	}
}

func TestAPIURL(t *testing.T) {
	require.Equal(t, "http://172.29.0.2:5001", APIURL("/ip4/172.29.0.2/tcp/5001"))
	require.Equal(t, "http://ipfs:5001", APIURL("ipfs:5001"))
	require.Equal(t, "https://node.example", APIURL("https://node.example"))
	require.Equal(t, "http://127.0.0.1:5001", APIURL(""))
}
