package easdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientSendsAuthAndDecodes(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-Api-Key")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"project_id":7,"value":"10","value_formatted":"0.00000000000000001","share":"5","remainder":"0","recipients":2,"payouts":[{"recipient":"0xa","amount":"5"},{"recipient":"0xb","amount":"5"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "ea_test"
	rw, err := c.DistributeReward(context.Background(), 7, "ipfs://r", "0.00000000000000001")
	require.NoError(t, err)
	require.Equal(t, "ea_test", gotAuth)
	require.Equal(t, "/v0/projects/7/reward", gotPath)
	require.Equal(t, "0.00000000000000001", gotBody["value"])
	require.Equal(t, "5", rw.Share)
	require.Len(t, rw.Payouts, 2)
}

func TestClientErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v0/projects/1/chat-access":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":"access_denied","message":"Access denied"}}`))
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":{"code":"not_verified","message":"completed activity is not verified"}}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ok, err := c.ChatAccess(context.Background(), 1, "eip155:0x2222222222222222222222222222222222222222")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = c.Accept(context.Background(), 1, 0, "c1", "0x2222222222222222222222222222222222222222")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Equal(t, "not_verified", apiErr.Code)
}
