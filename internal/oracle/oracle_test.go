package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestAssertAndPoll(t *testing.T) {
	claim := "Twitter user with the handle @alice follows twitter user with the handle @familyfinance"
	var got assertRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/assertions":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"assertion_id":"a-1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/assertions/a-1":
			_, _ = w.Write([]byte(`{"settled":true,"result":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "0xreq", "USDC", 0)
	id, err := c.Assert(context.Background(), claim)
	require.NoError(t, err)
	require.Equal(t, "a-1", id)
	require.Equal(t, claim, got.Claim)
	require.Equal(t, crypto.Keccak256Hash([]byte(claim)).Hex(), got.ClaimHash)
	require.Equal(t, "USDC", got.BondCurrency)

	a, err := c.Assertion(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, Assertion{ID: "a-1", Settled: true, Result: true}, a)
}

func TestAssertFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bond too low", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "", 0)
	_, err := c.Assert(context.Background(), "claim")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Contains(t, err.Error(), "bond too low")
}
